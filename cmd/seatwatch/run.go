package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marcin-skalski/seatwatch/internal/config"
	"github.com/marcin-skalski/seatwatch/internal/daemon"
	"github.com/marcin-skalski/seatwatch/internal/db"
	"github.com/marcin-skalski/seatwatch/internal/fetch"
	"github.com/marcin-skalski/seatwatch/internal/logging"
	"github.com/marcin-skalski/seatwatch/internal/notify"
	"github.com/marcin-skalski/seatwatch/internal/store"
	"github.com/marcin-skalski/seatwatch/internal/telemetry"
	"github.com/marcin-skalski/seatwatch/internal/tui"
	"github.com/marcin-skalski/seatwatch/internal/web"
)

// backend is a store serving both the daemon and the intake API.
type backend interface {
	store.DesiredState
	store.Catalog
	store.Suppressions
}

func newRunCmd() *cobra.Command {
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the watcher daemon and the intake API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return run(configPath, noTUI)
		},
	}
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "disable TUI mode")
	return cmd
}

func run(configPath string, noTUI bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Auto-detect TUI capability
	enableTUI := !noTUI && os.Getenv("SEATWATCH_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	logger, closer, err := logging.Setup(cfg.LogFile, cfg.Log, enableTUI)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	mp, metricsHandler, err := telemetry.NewPrometheusProvider()
	if err != nil {
		return err
	}
	defer func() { _ = mp.Shutdown(context.Background()) }()
	metrics, err := telemetry.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	fetcher := fetch.NewClient(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, logger)
	notifier := notify.NewFiltered(newNotifier(cfg, logger), st, logger)

	d := daemon.New(st, fetcher, notifier, daemon.Options{
		PollInterval:      cfg.PollInterval,
		ReconcileInterval: cfg.ReconcileInterval,
		ShutdownTimeout:   cfg.ShutdownTimeout,
		SiteURL:           cfg.HTTP.SiteURL,
		Metrics:           metrics,
	}, logger)

	srv := web.NewServer(cfg.HTTP.ListenAddr, web.Deps{
		Catalog:   st,
		Validator: fetcher,
		BaseURL:   cfg.Fetch.BaseURL,
		Metrics:   metricsHandler,
		Logger:    logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.Run(gctx)
	})
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	if enableTUI {
		// TUI in foreground; quitting it stops everything else
		logger.Info("seatwatch starting with TUI", "config", configPath)
		p := tea.NewProgram(tui.NewModel(d, cfg.TUI.RefreshInterval), tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Error("tui error", "err", err)
		}
		cancel()
	} else {
		logger.Info("seatwatch starting (headless)", "config", configPath, "listen", cfg.HTTP.ListenAddr)
	}

	if err := g.Wait(); err != nil {
		logger.Error("seatwatch stopped with error", "err", err)
		return err
	}
	logger.Info("seatwatch stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("no database.url configured, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	pool, err := db.Open(ctx, cfg.Database.URL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store.NewPostgres(pool), pool.Close, nil
}

func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if !cfg.SMTP.Enabled() {
		logger.Warn("no smtp.host configured, notifications are only logged")
		return notify.NewLog(logger)
	}
	return notify.NewSMTP(cfg.SMTP, logger)
}
