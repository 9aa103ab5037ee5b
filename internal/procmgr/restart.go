package procmgr

import (
	"time"

	"github.com/gophpeek/phpeek-pm/internal/audit"
	"github.com/gophpeek/phpeek-pm/internal/metrics"
	"github.com/gophpeek/phpeek-pm/internal/registry"
)

// RestartWindow is the hard-reset restart-rate window (spec.md §4.C). It
// does not slide: once RestartsInWindow exceeds MaxRestartsPerMinute within
// the window the instance is disabled until an operator re-enables it, and
// the counter is cleared only at the first restart attempt made after a
// full window has elapsed since the window started.
const RestartWindow = 60 * time.Second

// Restart is the Restart Governor (spec.md §4.C). For every instance whose
// group is enabled, whose own Enabled flag is still set, and
// which is not currently running, it either restarts the instance or, once
// MaxRestartsPerMinute is exceeded inside the current hard-reset window,
// disables it and emits a restart-limit event.
func (m *Manager) Restart(instances []*registry.Instance) {
	now := time.Now()
	for _, inst := range instances {
		if inst.Running || !inst.Enabled || !inst.Module.Group.Enabled {
			continue
		}

		if inst.RestartWindowStart.IsZero() || now.Sub(inst.RestartWindowStart) >= RestartWindow {
			inst.RestartWindowStart = now
			inst.RestartsInWindow = 0
		}

		inst.RestartsInWindow++
		if inst.RestartsInWindow > inst.MaxRestartsPerMinute {
			inst.Enabled = false
			m.logger.Warn("restart limit reached, disabling instance",
				"instance", inst.Name, "max_per_minute", inst.MaxRestartsPerMinute)
			m.recordEvent(inst, registry.EventRestartLimit, "")
			metrics.RecordRestartLimitReached(inst.Module.Group.Name, inst.Module.Name, inst.Name)
			maxPerMinute := inst.MaxRestartsPerMinute
			m.logAudit(func(a *audit.Logger) {
				a.LogRestartLimitReached(inst.Module.Group.Name, inst.Module.Name, inst.Name, maxPerMinute)
			})
			continue
		}

		metrics.RecordRestart(inst.Module.Group.Name, inst.Module.Name, inst.Name)
		attempt := inst.RestartsInWindow
		m.logAudit(func(a *audit.Logger) {
			a.LogInstanceRestart(inst.Module.Group.Name, inst.Module.Name, inst.Name, attempt)
		})
		if err := m.Start(inst); err != nil {
			m.logger.Error("restart failed", "instance", inst.Name, "error", err)
		}
	}
}
