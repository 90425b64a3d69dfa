package main

import (
	"os"

	"github.com/CMSgov/denial-review-app/denials/denialscli"
	"github.com/CMSgov/denial-review-app/log"
)

func main() {
	app := denialscli.GetApp()
	if err := app.Run(os.Args); err != nil {
		log.API.Fatal(err)
	}
}
