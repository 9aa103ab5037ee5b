// Package procmgr is the Process Manager (spec.md §4.B): fork/exec,
// signal escalation (SIGINT then SIGKILL), zombie reaping, and liveness
// probing of instance child processes.
package procmgr

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/gophpeek/phpeek-pm/internal/audit"
	"github.com/gophpeek/phpeek-pm/internal/registry"
)

// TGrace is the grace period between SIGINT and SIGKILL during a
// two-phase stop (spec.md §4.B SignalPhaseB).
const TGrace = 500 * time.Millisecond

// Disconnector closes any live service-socket connection for an instance.
// servicesock.Dialer implements this; the Process Manager calls it on reap
// so the fd is released immediately rather than left open until the next
// dial cycle notices the pid is gone (spec.md §4.B LivenessRefresh "close
// service_fd").
type Disconnector interface {
	Disconnect(inst *registry.Instance)
}

// Manager starts, signals, reaps, and probes instance child processes.
type Manager struct {
	logsPath     string
	logger       *slog.Logger
	events       *registry.EventLog
	audit        *audit.Logger
	disconnector Disconnector
}

// New returns a Manager that writes instance stdio under
// <logsPath>/instances/ and records lifecycle events to events and (when
// non-nil) the audit trail.
func New(logsPath string, logger *slog.Logger, events *registry.EventLog, auditLogger *audit.Logger) *Manager {
	return &Manager{logsPath: logsPath, logger: logger, events: events, audit: auditLogger}
}

// SetDisconnector wires the Service-Socket Dialer so reap/probe can close
// a live connection immediately. Optional: with none set, reap just clears
// the registry's service-socket fields directly.
func (m *Manager) SetDisconnector(d Disconnector) {
	m.disconnector = d
}

func (m *Manager) logAudit(fn func(*audit.Logger)) {
	if m.audit != nil {
		fn(m.audit)
	}
}

// Start forks and execs inst.Module.Path with inst.Args, redirecting
// stdout/stderr to append-mode log files and starting the child in a new
// session so parent-directed signals (e.g. a Ctrl+C to the supervisor's
// terminal) never reach it (spec.md §4.B Start).
func (m *Manager) Start(inst *registry.Instance) error {
	stdout, stderr, err := m.openLogFiles(inst.Name)
	if err != nil {
		return fmt.Errorf("procmgr: open log files for %s: %w", inst.Name, err)
	}
	defer stdout.Close()
	defer stderr.Close()

	cmd := &exec.Cmd{
		Path:   inst.Module.Path,
		Args:   inst.Args,
		Stdout: stdout,
		Stderr: stderr,
		SysProcAttr: &syscall.SysProcAttr{
			Setsid: true,
		},
	}

	if err := cmd.Start(); err != nil {
		m.recordEvent(inst, registry.EventStartFailed, err.Error())
		return fmt.Errorf("procmgr: start %s: %w", inst.Name, err)
	}

	// The child is detached (new session); release this process's
	// in-process handle so cmd's finalizer does not attempt a Wait. Reaping
	// happens explicitly via LivenessRefresh's non-blocking waitpid.
	if err := cmd.Process.Release(); err != nil {
		m.logger.Warn("failed to release process handle", "instance", inst.Name, "error", err)
	}

	inst.PID = cmd.Process.Pid
	inst.IsOurChild = true
	inst.Running = true
	inst.LastStartTime = time.Now()
	inst.SigintSentAt = time.Time{}
	inst.ServiceFD = -1
	inst.ServiceConnected = false
	inst.ServiceDialTick = 0

	m.logger.Info("instance started", "instance", inst.Name, "pid", inst.PID, "module", inst.Module.Path)
	m.recordEvent(inst, registry.EventStarted, fmt.Sprintf("pid %d", inst.PID))
	m.logAudit(func(a *audit.Logger) {
		a.LogInstanceStart(inst.Module.Group.Name, inst.Module.Name, inst.Name, inst.PID)
	})
	return nil
}

func (m *Manager) openLogFiles(instanceName string) (*os.File, *os.File, error) {
	dir := m.logsPath + "/instances"
	stdoutPath := dir + "/" + instanceName + "_stdout"
	stderrPath := dir + "/" + instanceName + "_stderr"

	stdout, err := os.OpenFile(stdoutPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", stdoutPath, err)
	}
	stderr, err := os.OpenFile(stderrPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		stdout.Close()
		return nil, nil, fmt.Errorf("open %s: %w", stderrPath, err)
	}
	return stdout, stderr, nil
}

func (m *Manager) recordEvent(inst *registry.Instance, kind registry.EventKind, message string) {
	if m.events == nil {
		return
	}
	m.events.Append(registry.Event{
		Kind:     kind,
		Group:    inst.Module.Group.Name,
		Module:   inst.Module.Name,
		Instance: inst.Name,
		Message:  message,
	})
}
