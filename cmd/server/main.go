package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/roster-sync/internal/config"
	"github.com/DoyleJ11/roster-sync/internal/httpapi"
	"github.com/DoyleJ11/roster-sync/internal/hub"
	"github.com/DoyleJ11/roster-sync/internal/journal"
	"github.com/DoyleJ11/roster-sync/internal/natsbus"
	"github.com/DoyleJ11/roster-sync/internal/roles"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := newLogger(cfg)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	layout, err := config.LoadLayout(cfg.MapFile)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	opts := hub.Options{
		Capacity:      cfg.MaxPlayers,
		Layout:        layout,
		TeleportDelay: cfg.TeleportDelay,
		Roles:         roles.NewStatic(cfg.ModeratorIDs, cfg.CreatorIDs),
		Follower:      !cfg.Authority,
		Logger:        log,
	}

	if cfg.DatabaseURL != "" {
		store, openErr := journal.OpenPostgres(cfg.DatabaseURL)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, store.Close()) }()
		w := journal.NewWriter(store, log)
		opts.Journal = w
		g.Go(func() error { return w.Run(gctx) })
		log.Info("journal enabled")
	}

	if cfg.Transport == config.TransportNATS {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("roster-sync"))
		if err != nil {
			return err
		}
		defer nc.Close()
		opts.Channels = func(_ context.Context, code string) (hub.Channel, error) {
			return natsbus.Open(nc, code, log)
		}
		log.Info("using nats transport", zap.String("url", cfg.NATSURL), zap.Bool("authority", cfg.Authority))
	}

	// The hub outlives gctx so ShutdownHub can close sessions in order.
	hctx, hcancel := context.WithCancel(context.Background())
	defer hcancel()
	h := hub.NewHub(hctx, opts)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(h, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		done := make(chan error, 1)
		h.Inbox() <- hub.ShutdownHub{Done: done}
		var errs error
		select {
		case e := <-done:
			errs = multierr.Append(errs, e)
		case <-sctx.Done():
		}
		return multierr.Append(errs, srv.Shutdown(sctx))
	})

	return g.Wait()
}
