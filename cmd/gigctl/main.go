// Command gigctl is the terminal client for the gigboard job marketplace.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gigboard/internal/client"
	"gigboard/internal/config"
	"gigboard/internal/identity"
	"gigboard/internal/localcache"
	"gigboard/internal/workflow"
)

const usage = `Usage: gigctl [-yes] <command> [flags] [args]

Account:
  register -email E -password P [-name N] [-photo URL]
  login    -email E -password P | -provider NAME -id-token T
  logout | whoami | profile [-name N] [-photo URL]

Jobs:
  jobs [-sort postedDate|title] [-order asc|desc] [-q TERM] [-category C]
  latest [-n 6] | category NAME | show ID | stats
  post -title T -category C -summary S -cover URL [-budget 100.00]
  edit ID [-title T] [-category C] [-summary S] [-cover URL] [-budget B]
  delete ID | mine

Tasks:
  accept JOB_ID | tasks | done ACCEPTANCE_ID | cancel ACCEPTANCE_ID | history
  sync [-cron "@every 5m"]
  export -kind tasks|jobs -o FILE.xlsx
`

type app struct {
	cfg       config.ClientConfig
	logger    *slog.Logger
	api       *client.Client
	cache     *localcache.Store
	session   *identity.Session
	term      *terminal
	accept    *workflow.Acceptances
	authoring *workflow.Authoring
}

func main() {
	assumeYes := flag.Bool("yes", false, "answer yes to confirmation prompts")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, *assumeYes)
	if err != nil {
		logger.Error("startup", "error", err)
		os.Exit(1)
	}
	defer a.cache.Close()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		var r reported
		if !errors.As(err, &r) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg config.ClientConfig, logger *slog.Logger, assumeYes bool) (*app, error) {
	cache, err := localcache.Open(cfg.CachePath)
	if err != nil {
		return nil, err
	}
	api := client.New(cfg.APIURL, client.WithTimeout(cfg.HTTPTimeout))
	session := identity.NewSession(api, cache, logger)
	if err := session.Restore(ctx); err != nil {
		logger.Warn("could not restore session", "error", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		api:     api,
		cache:   cache,
		session: session,
		term:    &terminal{out: os.Stdout, in: bufio.NewReader(os.Stdin), assumeYes: assumeYes},
	}
	a.term.renderView = func(v workflow.View) { a.render(ctx, v) }

	a.accept = workflow.NewAcceptances(workflow.AcceptanceDeps{
		API:           api,
		Cache:         cache,
		Sessions:      session,
		Navigator:     a.term,
		Notifier:      a.term,
		Confirmer:     a.term,
		Logger:        logger,
		RedirectDelay: redirectDelay(cfg),
	})
	a.authoring = workflow.NewAuthoring(workflow.AuthoringDeps{
		API:           api,
		Sessions:      session,
		Navigator:     a.term,
		Notifier:      a.term,
		Confirmer:     a.term,
		Logger:        logger,
		RedirectDelay: redirectDelay(cfg),
	})
	return a, nil
}

// redirectDelay maps an explicit zero to "no delay" for the workflows.
func redirectDelay(cfg config.ClientConfig) time.Duration {
	if cfg.RedirectDelay == 0 {
		return -1
	}
	return cfg.RedirectDelay
}

// reported marks an error the workflows already showed to the user.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

func quiet(err error) error {
	if err == nil {
		return nil
	}
	return reported{err}
}
