package procmgr

import (
	"syscall"
	"time"

	"github.com/gophpeek/phpeek-pm/internal/audit"
	"github.com/gophpeek/phpeek-pm/internal/registry"
)

// SignalPhaseA sends SIGINT to every instance that is running but no longer
// desired (group disabled or instance disabled), and stamps
// SigintSentAt so SignalPhaseB can later find it has waited out T_grace
// (spec.md §4.B two-phase stop, phase 1).
func (m *Manager) SignalPhaseA(instances []*registry.Instance) {
	for _, inst := range instances {
		if !inst.Running || inst.PID <= 0 {
			continue
		}
		if inst.Enabled && inst.Module.Group.Enabled {
			continue
		}
		if !inst.SigintSentAt.IsZero() {
			continue
		}
		if err := syscall.Kill(inst.PID, syscall.SIGINT); err != nil {
			m.logger.Warn("sigint failed", "instance", inst.Name, "pid", inst.PID, "error", err)
			continue
		}
		inst.SigintSentAt = time.Now()
		m.logger.Info("sigint sent", "instance", inst.Name, "pid", inst.PID)
		m.recordEvent(inst, registry.EventSigintSent, "")
		pid := inst.PID
		m.logAudit(func(a *audit.Logger) {
			a.LogInstanceStop(inst.Module.Group.Name, inst.Module.Name, inst.Name, pid, "sigint")
		})
	}
}

// SignalPhaseB sends SIGKILL to any instance that received SIGINT at least
// TGrace ago and is still running, per spec.md §4.B phase 2.
func (m *Manager) SignalPhaseB(instances []*registry.Instance) {
	now := time.Now()
	for _, inst := range instances {
		if !inst.Running || inst.PID <= 0 {
			continue
		}
		if inst.SigintSentAt.IsZero() {
			continue
		}
		if now.Sub(inst.SigintSentAt) < TGrace {
			continue
		}
		if err := syscall.Kill(inst.PID, syscall.SIGKILL); err != nil {
			m.logger.Warn("sigkill failed", "instance", inst.Name, "pid", inst.PID, "error", err)
			continue
		}
		m.logger.Info("sigkill sent", "instance", inst.Name, "pid", inst.PID)
		m.recordEvent(inst, registry.EventSigkillSent, "")
	}
}

// LivenessRefresh reaps exited children we forked (non-blocking waitpid)
// and probes the liveness of adopted instances with a signal-0 kill, per
// spec.md §4.B LivenessRefresh. A reaped or vanished instance has Running,
// PID, and service-socket state cleared.
func (m *Manager) LivenessRefresh(instances []*registry.Instance) {
	for _, inst := range instances {
		if !inst.Running || inst.PID <= 0 {
			continue
		}
		if inst.IsOurChild {
			m.reapOwned(inst)
		} else {
			m.probeAdopted(inst)
		}
	}
}

func (m *Manager) reapOwned(inst *registry.Instance) {
	var status syscall.WaitStatus
	pid, err := syscall.Wait4(inst.PID, &status, syscall.WNOHANG, nil)
	if err != nil || pid != inst.PID {
		return
	}
	m.logger.Info("instance reaped", "instance", inst.Name, "pid", inst.PID, "status", status)
	m.recordEvent(inst, registry.EventReaped, status.String())
	pid, detail := inst.PID, status.String()
	m.logAudit(func(a *audit.Logger) {
		a.LogInstanceReaped(inst.Module.Group.Name, inst.Module.Name, inst.Name, pid, detail)
	})
	m.clearProcessState(inst)
}

func (m *Manager) probeAdopted(inst *registry.Instance) {
	if err := syscall.Kill(inst.PID, 0); err == syscall.ESRCH {
		m.logger.Info("adopted instance vanished", "instance", inst.Name, "pid", inst.PID)
		m.recordEvent(inst, registry.EventReaped, "adopted instance no longer exists")
		pid := inst.PID
		m.logAudit(func(a *audit.Logger) {
			a.LogInstanceReaped(inst.Module.Group.Name, inst.Module.Name, inst.Name, pid, "adopted instance no longer exists")
		})
		m.clearProcessState(inst)
	}
}

func (m *Manager) clearProcessState(inst *registry.Instance) {
	inst.Running = false
	inst.PID = -1
	inst.IsOurChild = false
	inst.SigintSentAt = time.Time{}
	if m.disconnector != nil {
		m.disconnector.Disconnect(inst)
	} else {
		inst.ServiceFD = -1
		inst.ServiceConnected = false
	}
}

// ShutdownAll disables every instance, escalates through both signal
// phases with a single T_grace pause, and reaps what it can before
// returning, used on supervisor exit (spec.md §4.G shutdown sequence).
func (m *Manager) ShutdownAll(instances []*registry.Instance) {
	for _, inst := range instances {
		inst.Enabled = false
	}
	m.SignalPhaseA(instances)
	time.Sleep(TGrace)
	m.LivenessRefresh(instances)
	m.SignalPhaseB(instances)
	time.Sleep(50 * time.Millisecond)
	m.LivenessRefresh(instances)
}
