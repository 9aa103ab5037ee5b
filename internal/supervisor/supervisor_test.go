package supervisor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gophpeek/phpeek-pm/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func configWithLogsPath(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg := sampleConfig()
	cfg.Global.LogsPath = path
	cfg.Global.TickIntervalMS = 50
	return cfg
}

func TestNew_BootstrapsLogsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := configWithLogsPath(t, dir)

	s, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s == nil {
		t.Fatal("expected non-nil supervisor")
	}
	if _, err := os.Stat(filepath.Join(dir, "instances")); err != nil {
		t.Errorf("expected instances dir to exist: %v", err)
	}
}

func TestSupervisor_TickStartsAndRestartsCrashingInstance(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := &config.Config{
		Global: config.GlobalConfig{LogsPath: dir, TickIntervalMS: 50},
		Groups: map[string]*config.Group{
			"g": {
				Enabled: true,
				Modules: map[string]*config.Module{
					"m": {
						Path: "/bin/true",
						Instances: map[string]*config.Instance{
							"crashy": {
								Enabled:              true,
								Args:                 []string{"crashy"},
								MaxRestartsPerMinute: 5,
							},
						},
					},
				},
			},
		},
	}

	s, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.tick(ctx)
		time.Sleep(30 * time.Millisecond)
	}

	inst, ok := s.Registry().Instance("g", "m", "crashy")
	if !ok {
		t.Fatal("expected crashy instance in registry")
	}
	if inst.RestartsInWindow < 2 {
		t.Errorf("RestartsInWindow = %d, want at least 2 restarts after 3 ticks of a fast-exiting process", inst.RestartsInWindow)
	}
}

func TestSupervisor_StopTerminatesChildren(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := &config.Config{
		Global: config.GlobalConfig{LogsPath: dir, TickIntervalMS: 50},
		Groups: map[string]*config.Group{
			"g": {
				Enabled: true,
				Modules: map[string]*config.Module{
					"m": {
						Path: "/bin/sleep",
						Instances: map[string]*config.Instance{
							"sleeper": {
								Enabled:              true,
								Args:                 []string{"sleeper", "30"},
								MaxRestartsPerMinute: 3,
							},
						},
					},
				},
			},
		},
	}

	s, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		inst, ok := s.Registry().Instance("g", "m", "sleeper")
		if ok && inst.Running {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	s.Stop(true)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after Stop(true)")
	}

	inst, _ := s.Registry().Instance("g", "m", "sleeper")
	if inst.Running {
		t.Error("expected instance to be stopped after Stop(true)")
	}
}
