package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gophpeek/phpeek-pm/internal/api"
	"github.com/gophpeek/phpeek-pm/internal/config"
	"github.com/gophpeek/phpeek-pm/internal/logger"
	"github.com/gophpeek/phpeek-pm/internal/metrics"
	"github.com/gophpeek/phpeek-pm/internal/supervisor"
	"github.com/gophpeek/phpeek-pm/internal/tracing"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervisor",
	Long: `Start phpeek-pm in daemon mode: load the configured groups/modules/
instances, fork and supervise them, and serve the metrics/API endpoints
configured under global.*.`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	path := configPath()

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Global.LogLevel, cfg.Global.LogFormat)
	slog.SetDefault(log)

	log.Info("phpeek-pm starting", "version", version, "pid", os.Getpid(), "config", path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingProvider, err := tracing.NewProvider(ctx, tracing.TracerConfig{
		Enabled:     cfg.Global.TracingEnabled,
		Exporter:    cfg.Global.TracingExporter,
		Endpoint:    cfg.Global.TracingEndpoint,
		ServiceName: "phpeek-pm",
		Version:     version,
	}, log)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown error", "error", err)
		}
	}()

	sup, err := supervisor.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize supervisor", "error", err)
		os.Exit(1)
	}
	defer sup.Close()

	instanceCount := 0
	for _, group := range cfg.Groups {
		for _, module := range group.Modules {
			instanceCount += len(module.Instances)
		}
	}
	sup.LogConfigLoad(path, instanceCount)
	sup.LogSystemStart(version)

	stopSignals := sup.HandleSignals(ctx, cancel)
	defer stopSignals()

	var metricsServer *metrics.Server
	if cfg.Global.MetricsEnabled {
		metricsServer = metrics.NewServer(cfg.Global.MetricsPort, cfg.Global.MetricsPath, log)
		if err := metricsServer.Start(ctx); err != nil {
			log.Warn("failed to start metrics server", "error", err)
			metricsServer = nil
		} else {
			metrics.SetBuildInfo(version, "go")
		}
	}

	var apiServer *api.Server
	if cfg.Global.APIEnabled {
		apiServer = api.New(cfg.Global.APIPort, cfg.Global.APIAuth, sup, log)
		if err := apiServer.Start(); err != nil {
			log.Warn("failed to start api server", "error", err)
			apiServer = nil
		}
	}

	cfgWatcher, err := sup.WatchConfig(path)
	if err != nil {
		log.Warn("failed to start config watcher", "error", err)
	} else {
		if err := cfgWatcher.Start(ctx); err != nil {
			log.Warn("failed to start config watcher", "error", err)
		} else {
			defer cfgWatcher.Stop()
		}
	}

	log.Info("phpeek-pm running")
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("supervisor loop exited with error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Warn("api server shutdown error", "error", err)
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown error", "error", err)
		}
	}

	log.Info("phpeek-pm shutdown complete")
}
