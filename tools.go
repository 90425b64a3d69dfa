//go:build tools
// +build tools

package main

import (
	// test dependencies
	_ "github.com/securego/gosec/cmd/gosec"
	_ "github.com/tsenart/vegeta"
	_ "gotest.tools/gotestsum"
	// end test dependencies
)
