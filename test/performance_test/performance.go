package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"net/url"
	"os"
	"time"

	vegeta "github.com/tsenart/vegeta/lib"
	"github.com/tsenart/vegeta/lib/plot"
)

var (
	apiHost, proto, status, denialID, reportFilePath string
	freq, duration                                   int
)

func init() {
	flag.StringVar(&apiHost, "host", "localhost:3000", "host of the dashboard API")
	flag.IntVar(&duration, "duration", 60, "seconds: the total time to run the test")
	flag.IntVar(&freq, "freq", 10, "the number of requests per second")
	flag.StringVar(&proto, "proto", "http", "protocol to use")
	flag.StringVar(&status, "status", "", "comma-separated statuses to filter the list by")
	flag.StringVar(&denialID, "denial_id", "", "denial to load on the detail endpoint; skipped when empty")
	flag.StringVar(&reportFilePath, "report_path", "../../test_results/performance", "path to write the result.html")
	flag.Parse()

	// create folder if doesn't exist for storing the results
	if _, err := os.Stat(reportFilePath); os.IsNotExist(err) {
		err := os.MkdirAll(reportFilePath, os.ModePerm)
		if err != nil {
			panic(err)
		}
	}
}

func main() {
	run("list", listTarget())
	if denialID != "" {
		run("detail", detailTarget())
	}
	run("health", vegeta.NewStaticTargeter(vegeta.Target{
		Method: "GET",
		URL:    fmt.Sprintf("%s://%s/_health", proto, apiHost),
	}))
}

func run(name string, targeter vegeta.Targeter) {
	results := runTest(name, targeter)
	var buf bytes.Buffer
	if _, err := results.WriteTo(&buf); err != nil {
		panic(err)
	}
	writeResults(fmt.Sprintf("%s_api_plot", name), buf)
}

func listTarget() vegeta.Targeter {
	u := fmt.Sprintf("%s://%s/api/denials", proto, apiHost)
	if status != "" {
		u += "?" + url.Values{"status": {status}}.Encode()
	}
	return vegeta.NewStaticTargeter(vegeta.Target{
		Method: "GET",
		URL:    u,
		Header: map[string][]string{"Accept": {"application/json"}},
	})
}

func detailTarget() vegeta.Targeter {
	return vegeta.NewStaticTargeter(vegeta.Target{
		Method: "GET",
		URL:    fmt.Sprintf("%s://%s/api/denials/%s", proto, apiHost, url.PathEscape(denialID)),
		Header: map[string][]string{"Accept": {"application/json"}},
	})
}

func runTest(name string, target vegeta.Targeter) *plot.Plot {
	fmt.Printf("running api performance for: %s\n", name)
	p := plot.New(plot.Title(fmt.Sprintf("apiTest_%s", name)))
	defer p.Close()

	d := time.Second * time.Duration(duration)
	rate := vegeta.Rate{Freq: freq, Per: time.Second}
	plotAttack(p, target, rate, d)

	return p
}

func plotAttack(p *plot.Plot, t vegeta.Targeter, r vegeta.Rate, du time.Duration) {
	attacker := vegeta.NewAttacker()
	for results := range attacker.Attack(t, r, du, fmt.Sprintf("%dps:", r.Freq)) {
		err := p.Add(results)
		if err != nil {
			panic(err)
		}
	}
}

func writeResults(filename string, buf bytes.Buffer) {
	data := buf.Bytes()
	if len(data) > 0 {
		fn := fmt.Sprintf("%s/%s.html", reportFilePath, filename)
		fmt.Printf("Writing results: %s\n", fn)
		err := ioutil.WriteFile(fn, data, 0600)
		if err != nil {
			panic(err)
		}
	}
}
