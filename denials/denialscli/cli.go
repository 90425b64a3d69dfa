package denialscli

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/CMSgov/denial-review-app/conf"
	"github.com/CMSgov/denial-review-app/denials/analysis"
	"github.com/CMSgov/denial-review-app/denials/client"
	"github.com/CMSgov/denial-review-app/denials/constants"
	"github.com/CMSgov/denial-review-app/denials/health"
	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/denials/views"
	"github.com/CMSgov/denial-review-app/denials/web"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// App Name and usage.  Edit them here to prevent breaking tests
const Name = "denials"
const Usage = "Denial review dashboard API and operator CLI"

const dateLayout = "2006-01-02"

func GetApp() *cli.App {
	return setUpApp()
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage
	app.Version = constants.Version
	app.Writer = colorable.NewColorableStdout()
	app.ErrWriter = colorable.NewColorableStderr()

	var (
		cfg                                conf.Config
		apiURL, denialID, status, filePath string
		outPath, dir, docID                string
		statuses, locations, priorities    string
		dateFrom, dateTo, search           string
		settle                             time.Duration
	)

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "api-url",
			Usage:       "Backend base URL including /api (overrides DENIALS_API_URL)",
			Destination: &apiURL,
		},
	}
	app.Before = func(c *cli.Context) error {
		cfg = conf.Load()
		if apiURL != "" {
			cfg.BaseURL = strings.TrimRight(apiURL, "/")
		}
		return nil
	}

	idFlag := cli.StringFlag{
		Name:        "id",
		Usage:       "ID of the denial",
		Destination: &denialID,
	}

	app.Commands = []cli.Command{
		{
			Name:  "start-api",
			Usage: "Start the dashboard API",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(app.Writer, "Starting %s on %s...\n", Name, cfg.ListenAddr)
				return startAPI(cfg)
			},
		},
		{
			Name:     "list",
			Category: "Denials",
			Usage:    "List denials with optional filters",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "status", Usage: "Comma-separated statuses (InReview, AppealFiled, Denied, Resolved)", Destination: &statuses},
				cli.StringFlag{Name: "location", Usage: "Comma-separated facility locations", Destination: &locations},
				cli.StringFlag{Name: "priority", Usage: "Comma-separated priorities", Destination: &priorities},
				cli.StringFlag{Name: "from", Usage: "Earliest service date (YYYY-MM-DD)", Destination: &dateFrom},
				cli.StringFlag{Name: "to", Usage: "Latest service date (YYYY-MM-DD)", Destination: &dateTo},
				cli.StringFlag{Name: "search", Usage: "Filter by patient name, claim number or payer", Destination: &search},
			},
			Action: func(c *cli.Context) error {
				q, err := listQuery(statuses, locations, priorities, dateFrom, dateTo, search)
				if err != nil {
					return err
				}
				view, err := views.NewListController(client.NewClient(cfg)).Fetch(context.Background(), q)
				if err != nil {
					return err
				}
				printList(app.Writer, view)
				return nil
			},
		},
		{
			Name:     "show",
			Category: "Denials",
			Usage:    "Show a denial's details",
			Flags:    []cli.Flag{idFlag},
			Action: func(c *cli.Context) error {
				if denialID == "" {
					return errors.New("denial ID (--id) must be provided")
				}
				st, err := newSession(cfg, denialID).Load(context.Background())
				if err != nil {
					return err
				}
				printDetail(app.Writer, st)
				return nil
			},
		},
		{
			Name:     "set-status",
			Category: "Denials",
			Usage:    "Update a denial's status",
			Flags: []cli.Flag{
				idFlag,
				cli.StringFlag{Name: "status", Usage: "New status (InReview, AppealFiled, Denied, Resolved)", Destination: &status},
			},
			Action: func(c *cli.Context) error {
				if denialID == "" || status == "" {
					return errors.New("denial ID (--id) and status (--status) must be provided")
				}
				d, err := views.NewDetailController(client.NewClient(cfg)).
					UpdateStatus(context.Background(), denialID, models.Status(status))
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "Denial %s is now %s\n", d.ID, colorize(models.BadgeFor(d.Status)))
				return nil
			},
		},
		{
			Name:     "upload",
			Category: "Uploads",
			Usage:    "Upload a ZIP bundle to create a denial",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "file", Usage: "Path to the .zip bundle", Destination: &filePath},
			},
			Action: func(c *cli.Context) error {
				if filePath == "" {
					return errors.New("file path (--file) must be provided")
				}
				d, err := uploadFile(context.Background(), client.NewClient(cfg), cfg, filePath, app.Writer)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "Created denial %s for %s\n", d.ID, d.PatientName)
				return nil
			},
		},
		{
			Name:     "watch",
			Category: "Uploads",
			Usage:    "Upload every ZIP bundle dropped into a directory",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "dir", Usage: "Directory to watch", Destination: &dir},
				cli.DurationFlag{Name: "settle", Usage: "Quiet period before a new file is uploaded", Value: 2 * time.Second, Destination: &settle},
			},
			Action: func(c *cli.Context) error {
				if dir == "" {
					return errors.New("directory (--dir) must be provided")
				}
				ctx, stop := signalContext()
				defer stop()

				gateway := client.NewClient(cfg)
				fmt.Fprintf(app.Writer, "Watching %s for .zip bundles\n", dir)
				return watchDir(ctx, dir, settle, func(path string) {
					d, err := uploadFile(ctx, gateway, cfg, path, app.Writer)
					if err != nil {
						fmt.Fprintf(app.ErrWriter, "%s: %s\n", filepath.Base(path), err.Error())
						return
					}
					fmt.Fprintf(app.Writer, "Created denial %s from %s\n", d.ID, filepath.Base(path))
				})
			},
		},
		{
			Name:     "analyze",
			Category: "Analysis",
			Usage:    "Run a root cause analysis for a denial",
			Flags:    []cli.Flag{idFlag},
			Action: func(c *cli.Context) error {
				if denialID == "" {
					return errors.New("denial ID (--id) must be provided")
				}
				st, err := newSession(cfg, denialID).Analyze(context.Background())
				if err != nil {
					return err
				}
				printAnalysis(app.Writer, st)
				return nil
			},
		},
		{
			Name:     "appeal",
			Category: "Analysis",
			Usage:    "Generate an appeal letter for a denial",
			Flags: []cli.Flag{
				idFlag,
				cli.StringFlag{Name: "out", Usage: "Write the letter to this file instead of stdout", Destination: &outPath},
			},
			Action: func(c *cli.Context) error {
				if denialID == "" {
					return errors.New("denial ID (--id) must be provided")
				}
				sess := newSession(cfg, denialID)
				st, err := sess.Appeal(context.Background())
				if err != nil {
					return err
				}
				fmt.Fprintln(app.Writer, st.StatusLine)
				fmt.Fprintf(app.Writer, "Status: %s\n", st.Appeal.Status)
				for _, f := range st.MissingInformation {
					fmt.Fprintf(app.Writer, "Missing: %s\n", f)
				}
				if outPath == "" {
					fmt.Fprintf(app.Writer, "\n%s\n", sess.Letter())
					return nil
				}
				if err := ioutil.WriteFile(outPath, []byte(sess.Letter()), 0600); err != nil {
					return errors.Wrapf(err, "failed to write %s", outPath)
				}
				fmt.Fprintf(app.Writer, "Letter written to %s\n", outPath)
				return nil
			},
		},
		{
			Name:     "download-document",
			Category: "Denials",
			Usage:    "Download a supporting document",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "id", Usage: "ID of the document", Destination: &docID},
				cli.StringFlag{Name: "out", Usage: "Output file (defaults to the document's file name)", Destination: &outPath},
			},
			Action: func(c *cli.Context) error {
				if docID == "" {
					return errors.New("document ID (--id) must be provided")
				}
				doc, err := client.NewClient(cfg).GetDocument(context.Background(), docID)
				if err != nil {
					return err
				}
				path := outPath
				if path == "" {
					path = filepath.Base(doc.FileName)
				}
				if err := ioutil.WriteFile(path, doc.Content, 0600); err != nil {
					return errors.Wrapf(err, "failed to write %s", path)
				}
				fmt.Fprintf(app.Writer, "Wrote %d bytes to %s\n", len(doc.Content), path)
				return nil
			},
		},
		{
			Name:     "check-health",
			Category: "Denials",
			Usage:    "Check connectivity to the backend",
			Action: func(c *cli.Context) error {
				m := health.NewMonitor(client.NewClient(cfg), cfg.HealthInterval, cfg.HealthTimeout)
				r := m.Check(context.Background())
				fmt.Fprintf(app.Writer, "Backend %s: %s\n", cfg.BaseURL, r.Status)
				if r.Status != health.StatusConnected {
					return errors.New(r.LastError)
				}
				return nil
			},
		},
	}
	return app
}

func newSession(cfg conf.Config, id string) *views.Session {
	gateway := client.NewClient(cfg)
	return views.NewSession(id, views.NewDetailController(gateway), analysis.NewOrchestrator(gateway))
}

func listQuery(statuses, locations, priorities, from, to, search string) (views.ListQuery, error) {
	q := views.ListQuery{
		Filter: client.Filter{
			Locations:  splitList(locations),
			Priorities: splitList(priorities),
		},
		Search: search,
	}
	for _, s := range splitList(statuses) {
		if !models.Status(s).Valid() {
			return q, fmt.Errorf("invalid status %q", s)
		}
		q.Statuses = append(q.Statuses, models.Status(s))
	}
	for _, d := range []struct {
		raw string
		dst **time.Time
	}{{from, &q.Filter.DateFrom}, {to, &q.Filter.DateTo}} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, d.raw)
		if err != nil {
			return q, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", d.raw)
		}
		*d.dst = &t
	}
	return q, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func signalContext() (context.Context, func()) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func startAPI(cfg conf.Config) error {
	server := web.NewServer(cfg)
	server.Start()
	defer server.Stop()

	api := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           web.NewRouter(server),
		ReadHeaderTimeout: time.Duration(conf.GetEnvInt("API_READ_TIMEOUT", 10)) * time.Second,
		// Uploads are proxied to the backend within the request.
		ReadTimeout:  cfg.UploadTimeout,
		WriteTimeout: cfg.UploadTimeout + time.Minute,
		IdleTimeout:  time.Duration(conf.GetEnvInt("API_IDLE_TIMEOUT", 120)) * time.Second,
	}

	ctx, stop := signalContext()
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			log.API.Errorf("Failed to shut down cleanly: %s", err.Error())
		}
	}()

	log.API.Infof("Listening on %s, backend %s", cfg.ListenAddr, cfg.BaseURL)
	if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
