package resource

import (
	"os"
	"testing"

	"github.com/gophpeek/phpeek-pm/internal/registry"
)

func TestReadHostTotalJiffies(t *testing.T) {
	if _, err := os.Stat(procRoot + "/stat"); err != nil {
		t.Skip("no /proc/stat on this host")
	}
	total, err := readHostTotalJiffies()
	if err != nil {
		t.Fatalf("readHostTotalJiffies() error = %v", err)
	}
	if total == 0 {
		t.Error("expected non-zero total jiffies")
	}
}

func TestReadProcessStat_Self(t *testing.T) {
	if _, err := os.Stat(procRoot + "/self/stat"); err != nil {
		t.Skip("no /proc/self/stat on this host")
	}
	utime, stime, vsize, err := readProcessStat(os.Getpid())
	if err != nil {
		t.Fatalf("readProcessStat() error = %v", err)
	}
	if vsize == 0 {
		t.Error("expected non-zero vsize for self")
	}
	_ = utime
	_ = stime
}

func TestReadVmRSS_Self(t *testing.T) {
	if _, err := os.Stat(procRoot + "/self/status"); err != nil {
		t.Skip("no /proc/self/status on this host")
	}
	rss, err := readVmRSS(os.Getpid())
	if err != nil {
		t.Fatalf("readVmRSS() error = %v", err)
	}
	if rss == 0 {
		t.Error("expected non-zero RSS for self")
	}
}

func TestSampler_FirstTickSkipped(t *testing.T) {
	if _, err := os.Stat(procRoot + "/stat"); err != nil {
		t.Skip("no /proc/stat on this host")
	}
	s := NewSampler()
	g := &registry.Group{Name: "g", Enabled: true}
	m := &registry.Module{Name: "m", Group: g}
	inst := &registry.Instance{Name: "i", Module: m, Running: true, PID: os.Getpid()}

	errs := s.Sample([]*registry.Instance{inst})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors on first sample: %v", errs)
	}
	if inst.CPUPctUser != 0 || inst.CPUPctKernel != 0 {
		t.Error("first tick should not compute a percentage (no prior baseline)")
	}
}

func TestCPUPercent(t *testing.T) {
	tests := []struct {
		name       string
		cur, prev  uint64
		deltaTotal uint64
		want       uint64
	}{
		{"no host progress", 100, 50, 0, 0},
		{"cur less than prev", 40, 50, 100, 0},
		{"normal", 150, 100, 100, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cpuPercent(tt.cur, tt.prev, tt.deltaTotal); got != tt.want {
				t.Errorf("cpuPercent(%d,%d,%d) = %d, want %d", tt.cur, tt.prev, tt.deltaTotal, got, tt.want)
			}
		})
	}
}
