package supervisor

import (
	"fmt"

	"github.com/gophpeek/phpeek-pm/internal/config"
	"github.com/gophpeek/phpeek-pm/internal/watcher"
)

// Reload re-reads configPath, rebuilds the Registry under the config lock,
// and carries over the observed process state of any instance whose
// group/module/name triple is unchanged (spec.md §4.H SubscribeChanges:
// the callback runs under the core's lock with a delta to apply to the
// Instance Registry). Instances removed from config are left to the
// Process Manager's next signal-phase pass, since they are no longer
// reachable from the rebuilt Registry's iteration but may still be
// running; RemoveInstance is not called here to avoid orphaning a live
// pid out of the liveness/reap path mid-tick.
func (s *Supervisor) Reload(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("supervisor: reload config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newReg := BuildRegistry(cfg)
	for _, inst := range newReg.Instances() {
		if old, ok := s.reg.Instance(inst.Module.Group.Name, inst.Module.Name, inst.Name); ok {
			inst.PID = old.PID
			inst.IsOurChild = old.IsOurChild
			inst.Running = old.Running
			inst.LastStartTime = old.LastStartTime
			inst.RestartWindowStart = old.RestartWindowStart
			inst.RestartsInWindow = old.RestartsInWindow
			inst.SigintSentAt = old.SigintSentAt
			inst.ServiceFD = old.ServiceFD
			inst.ServiceConnected = old.ServiceConnected
			inst.ServiceDialTick = old.ServiceDialTick
			if inst.PID > 0 {
				newReg.IndexPID(inst.PID, inst)
			}
		}
	}

	s.cfg = cfg
	s.reg = newReg
	s.logger.Info("configuration reloaded", "path", configPath)
	s.audit.LogConfigReload(configPath)
	return nil
}

// WatchConfig creates an fsnotify watcher on configPath that calls Reload on
// every debounced change, per spec.md §4.H External Config Adapter. The
// watcher is returned unstarted; the caller starts it with its Start method.
func (s *Supervisor) WatchConfig(configPath string) (*watcher.Watcher, error) {
	w, err := watcher.New(watcher.Config{
		ConfigPath: configPath,
		Handler:    func() error { return s.Reload(configPath) },
		Logger:     s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("supervisor: create config watcher: %w", err)
	}
	return w, nil
}
