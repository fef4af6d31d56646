package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/MrWong99/speechscope/internal/config"
	"github.com/MrWong99/speechscope/internal/observe"
	"github.com/MrWong99/speechscope/internal/server"
	"github.com/MrWong99/speechscope/pkg/speech"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var reloadInterval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis service",
		Long: "Serve POST /v1/analyze plus health and metrics endpoints. When --config is\n" +
			"set, the file is watched and analysis settings, limits and the log level are\n" +
			"applied without a restart.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g, reloadInterval)
		},
	}
	cmd.Flags().DurationVar(&reloadInterval, "reload-interval", 5*time.Second, "how often the config file is polled for changes")
	return cmd
}

func runServe(cmd *cobra.Command, g *globalFlags, reloadInterval time.Duration) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	lv := new(slog.LevelVar)
	lv.Set(slogLevel(cfg.Server.LogLevel))
	logger := newLogger(cmd.ErrOrStderr(), lv)
	slog.SetDefault(logger)

	logger.Info("speechscope starting",
		"version", version,
		"config", g.configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	providers, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	// ── Analyzer and HTTP server ──────────────────────────────────────────────
	newAnalyzer := func(c speech.Config) (*speech.Analyzer, error) {
		return speech.New(c, speech.WithLogger(logger), speech.WithObserver(metrics))
	}
	analyzer, err := newAnalyzer(cfg.Analysis)
	if err != nil {
		return err
	}

	srv := server.New(analyzer, server.Options{
		Limits:         limitsOf(cfg),
		MetricsPath:    cfg.Telemetry.MetricsPath,
		MetricsHandler: promhttp.Handler(),
		Metrics:        metrics,
		Logger:         logger,
	})

	// ── Config hot reload ─────────────────────────────────────────────────────
	if g.configPath != "" {
		r := &reloader{
			srv:         srv,
			levels:      lv,
			metrics:     metrics,
			logger:      logger,
			newAnalyzer: newAnalyzer,
			logOverride: g.logLevel != "",
		}
		watcher, err := config.NewWatcher(g.configPath, r.apply,
			config.WithInterval(reloadInterval),
			config.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer watcher.Stop()
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			logger.Info("server: listening (TLS)", "addr", httpSrv.Addr)
			err = httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			logger.Info("server: listening", "addr", httpSrv.Addr)
			err = httpSrv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	logger.Info("shutdown signal received, stopping…")
	srv.Health().SetDraining(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
		return err
	}
	logger.Info("goodbye")
	return nil
}

func limitsOf(cfg *config.Config) server.Limits {
	return server.Limits{
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		AnalysisTimeout: cfg.Server.AnalysisTimeout,
	}
}

// reloader applies configuration changes picked up by the watcher to a
// running server.
type reloader struct {
	srv         *server.Server
	levels      *slog.LevelVar
	metrics     *observe.Metrics
	logger      *slog.Logger
	newAnalyzer func(speech.Config) (*speech.Analyzer, error)

	// logOverride pins the level given by --log-level.
	logOverride bool
}

func (r *reloader) apply(old, new *config.Config) {
	ctx := context.Background()
	d := config.Diff(old, new)

	if d.AnalysisChanged {
		a, err := r.newAnalyzer(new.Analysis)
		if err != nil {
			r.logger.Error("config reload: analysis settings rejected", "err", err)
			r.metrics.RecordConfigReload(ctx, "rejected")
			return
		}
		r.srv.SetAnalyzer(a)
		r.logger.Info("config reload: analyzer replaced")
	}
	if d.LimitsChanged {
		r.srv.SetLimits(limitsOf(new))
		r.logger.Info("config reload: limits updated",
			"max_upload_bytes", new.Server.MaxUploadBytes,
			"analysis_timeout", new.Server.AnalysisTimeout,
		)
	}
	if d.LogLevelChanged && !r.logOverride {
		r.levels.Set(slogLevel(d.NewLogLevel))
		r.logger.Info("config reload: log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		r.logger.Warn("config reload: some changes need a restart", "fields", d.RestartRequired)
	}
	r.metrics.RecordConfigReload(ctx, "applied")
}
