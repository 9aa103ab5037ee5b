package procmgr

import (
	"syscall"
	"testing"
	"time"

	"github.com/gophpeek/phpeek-pm/internal/registry"
)

func TestSignalPhaseA_SkipsDesiredInstances(t *testing.T) {
	logsPath := mustLogsDir(t)
	m := New(logsPath, testLogger(), registry.NewEventLog(16), nil)

	inst := newTestInstance("sleeper", "/bin/sleep", []string{"sleeper", "5"})
	if err := m.Start(inst); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer syscall.Kill(inst.PID, syscall.SIGKILL)

	m.SignalPhaseA([]*registry.Instance{inst})
	if !inst.SigintSentAt.IsZero() {
		t.Error("expected no SIGINT for a still-desired instance")
	}
}

func TestSignalPhaseA_SignalsUndesiredInstance(t *testing.T) {
	logsPath := mustLogsDir(t)
	m := New(logsPath, testLogger(), registry.NewEventLog(16), nil)

	inst := newTestInstance("sleeper", "/bin/sleep", []string{"sleeper", "5"})
	if err := m.Start(inst); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer syscall.Kill(inst.PID, syscall.SIGKILL)

	inst.Enabled = false
	m.SignalPhaseA([]*registry.Instance{inst})
	if inst.SigintSentAt.IsZero() {
		t.Fatal("expected SIGINT to be sent")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.LivenessRefresh([]*registry.Instance{inst})
		if !inst.Running {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if inst.Running {
		t.Fatal("expected instance to exit on SIGINT")
	}
}

func TestSignalPhaseB_EscalatesAfterGrace(t *testing.T) {
	logsPath := mustLogsDir(t)
	m := New(logsPath, testLogger(), registry.NewEventLog(16), nil)

	// A SIGINT-ignoring child would need a helper binary; here we simulate
	// the grace-elapsed condition directly against a real sleeping process
	// so SignalPhaseB's own kill/reap path is exercised end to end.
	inst := newTestInstance("stubborn", "/bin/sleep", []string{"stubborn", "5"})
	if err := m.Start(inst); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	inst.SigintSentAt = time.Now().Add(-2 * TGrace)
	m.SignalPhaseB([]*registry.Instance{inst})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.LivenessRefresh([]*registry.Instance{inst})
		if !inst.Running {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if inst.Running {
		t.Fatal("expected SIGKILL to terminate the instance")
	}
}

func TestSignalPhaseB_WaitsOutGracePeriod(t *testing.T) {
	logsPath := mustLogsDir(t)
	m := New(logsPath, testLogger(), registry.NewEventLog(16), nil)

	inst := newTestInstance("sleeper", "/bin/sleep", []string{"sleeper", "5"})
	if err := m.Start(inst); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer syscall.Kill(inst.PID, syscall.SIGKILL)

	inst.SigintSentAt = time.Now()
	m.SignalPhaseB([]*registry.Instance{inst})

	if err := syscall.Kill(inst.PID, 0); err != nil {
		t.Errorf("expected instance still alive inside grace period, kill(0) = %v", err)
	}
}

func TestLivenessRefresh_ProbesAdoptedInstance(t *testing.T) {
	logsPath := mustLogsDir(t)
	m := New(logsPath, testLogger(), registry.NewEventLog(16), nil)

	inst := newTestInstance("adopted", "/bin/sleep", []string{"adopted", "5"})
	if err := m.Start(inst); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	pid := inst.PID
	inst.IsOurChild = false

	syscall.Kill(pid, syscall.SIGKILL)
	var status syscall.WaitStatus
	syscall.Wait4(pid, &status, 0, nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.LivenessRefresh([]*registry.Instance{inst})
		if !inst.Running {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if inst.Running {
		t.Fatal("expected adopted instance to be detected as gone")
	}
}
