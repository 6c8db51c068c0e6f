package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etnz/immotax/filestore"
	"github.com/etnz/immotax/functions"
	"github.com/etnz/immotax/fx"
	"github.com/etnz/immotax/llm"
	"github.com/etnz/immotax/mail"
	"github.com/etnz/immotax/scheduler"
	"github.com/etnz/immotax/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the API server" }
func (*serveCmd) Usage() string {
	return `itx [-config <file>] serve [-addr <addr>]

  Serves the HTTP API, delivers the webhooks and, when enabled, sends the
  daily reminders. Stops gracefully on SIGINT or SIGTERM.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address, overrides the configuration")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	if c.addr != "" {
		a.cfg.Server.Addr = c.addr
	}

	if err := a.serve(ctx); err != nil {
		a.log.Error("server failed", zap.Error(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// serve wires the services of the configuration and serves until ctx is done.
func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.log
	ents := a.store.Entities()

	var pub webhook.Publisher
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("immotax"), nats.MaxReconnects(-1))
		if err != nil {
			return fmt.Errorf("cannot connect to NATS: %w", err)
		}
		defer func() { _ = nc.Drain() }()
		pub = nc
		log.Info("publishing events", zap.String("nats", nc.ConnectedUrl()))
	}
	dispatcher := webhook.NewDispatcher(ents.Webhooks, pub, webhook.Options{
		Parallel:  cfg.Webhooks.Parallel,
		RateLimit: cfg.Webhooks.RateLimit,
		Retries:   cfg.Webhooks.Retries,
		Backoff:   cfg.Webhooks.Backoff,
		Timeout:   cfg.Webhooks.Timeout,
	}, log.Named("webhook"))
	a.store.SetListener(dispatcher.Notify)

	files, err := a.files(ctx)
	if err != nil {
		return err
	}
	if closer, ok := files.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	var invoker llm.Invoker = llm.Disabled{}
	if cfg.LLM.APIKey != "" {
		g, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model, log.Named("llm"))
		if err != nil {
			return err
		}
		invoker = g
	}

	sender := a.mailer()
	reminders := &scheduler.Reminders{
		Entities:     ents,
		Mail:         sender,
		Landlord:     cfg.Scheduler.Landlord,
		FilingWindow: cfg.Scheduler.FilingWindow,
		Log:          log.Named("reminders"),
	}
	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(reminders, cfg.Scheduler.At)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
	}

	gin.SetMode(cfg.Server.Mode)
	server := functions.New(functions.Deps{
		Store:     a.store,
		Files:     files,
		LLM:       invoker,
		Mail:      sender,
		Webhooks:  dispatcher,
		Rates:     fx.NewClient(cfg.FX.URL, cfg.FX.CacheDir, log.Named("fx")),
		Reminders: reminders,
		Log:       log,
		MaxUpload: cfg.Server.MaxUpload,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := dispatcher.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("serving", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdown)
	})
	return g.Wait()
}

// files returns the document storage of the configuration.
func (a *app) files(ctx context.Context) (filestore.Store, error) {
	if a.cfg.Files.GCSBucket != "" {
		return filestore.NewGCS(ctx, a.cfg.Files.GCSBucket, a.cfg.Files.GCSCredentials)
	}
	return filestore.NewLocal(a.cfg.Files.Dir)
}

// mailer returns the SMTP sender of the configuration, or a sender logging
// the messages when no SMTP server is configured.
func (a *app) mailer() mail.Sender {
	if a.cfg.SMTP.Host == "" {
		return &mail.LogSender{Log: a.log.Named("mail")}
	}
	return mail.NewSMTP(a.cfg.SMTP, a.log.Named("mail"))
}
