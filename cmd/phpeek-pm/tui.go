package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gophpeek/phpeek-pm/internal/config"
	"github.com/gophpeek/phpeek-pm/internal/logger"
	"github.com/gophpeek/phpeek-pm/internal/supervisor"
	"github.com/gophpeek/phpeek-pm/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the supervisor with an interactive dashboard",
	Long: `Start phpeek-pm in embedded mode: the supervisor runs in the
background and a read-only terminal dashboard attaches to it directly,
with no API round trip.`,
	Run: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) {
	path := configPath()

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Global.LogLevel, cfg.Global.LogFormat)
	slog.SetDefault(log)

	sup, err := supervisor.New(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize supervisor: %v\n", err)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("supervisor loop exited with error", "error", err)
		}
	}()

	if err := tui.Run(sup); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
	}

	sup.Stop(true)
	cancel()
}
