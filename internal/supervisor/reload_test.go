package supervisor

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/gophpeek/phpeek-pm/internal/config"
)

func writeConfigFile(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestReload_CarriesOverRunningState(t *testing.T) {
	dir := t.TempDir()
	logsDir := filepath.Join(dir, "logs")
	cfg := &config.Config{
		Global: config.GlobalConfig{LogsPath: logsDir, TickIntervalMS: 1500},
		Groups: map[string]*config.Group{
			"g": {
				Enabled: true,
				Modules: map[string]*config.Module{
					"m": {
						Path: "/bin/sleep",
						Instances: map[string]*config.Instance{
							"sleeper": {Enabled: true, Args: []string{"sleeper", "5"}, MaxRestartsPerMinute: 3},
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

	inst, _ := s.Registry().Instance("g", "m", "sleeper")
	if err := s.procs.Start(inst); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	pid := inst.PID
	defer syscall.Kill(pid, syscall.SIGKILL)

	configPath := filepath.Join(dir, "phpeek-pm.yaml")
	writeConfigFile(t, configPath, cfg)

	if err := s.Reload(configPath); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	reloaded, ok := s.Registry().Instance("g", "m", "sleeper")
	if !ok {
		t.Fatal("expected sleeper instance after reload")
	}
	if reloaded.PID != pid {
		t.Errorf("PID = %d, want %d (carried over)", reloaded.PID, pid)
	}
	if !reloaded.Running {
		t.Error("expected Running=true carried over from prior registry")
	}

	if found, ok := s.Registry().InstanceByPID(pid); !ok || found != reloaded {
		t.Error("expected pid index to point at the reloaded instance")
	}
}
