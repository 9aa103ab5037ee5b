package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// PidState is the External Config Adapter's PersistPid/Commit surface
// (spec.md §4.H): it records the pid of every still-running instance when
// the supervisor exits on SIGQUIT, so the next boot can adopt those
// processes instead of re-forking them (scenario 6, adopt-on-exit). There
// is no separate datastore process in this repo, so the YAML config
// adapter also owns this small piece of on-disk state, written as JSON
// since it's machine-only bookkeeping, not user-facing configuration.
type PidState struct {
	mu   sync.Mutex
	path string
	pids map[string]int // "group/module/instance" -> pid
}

// NewPidState binds a PidState to <logs_path>/pidstate.json.
func NewPidState(logsPath string) *PidState {
	return &PidState{
		path: filepath.Join(logsPath, "pidstate.json"),
		pids: make(map[string]int),
	}
}

func pidKey(group, module, instance string) string {
	return group + "/" + module + "/" + instance
}

// PersistPid stages a running instance's pid for the next Commit. Callers
// typically call this for every running instance right before shutdown.
func (p *PidState) PersistPid(group, module, instance string, pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pids[pidKey(group, module, instance)] = pid
}

// Commit writes the staged pids to disk, replacing whatever was persisted
// before.
func (p *PidState) Commit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.Marshal(p.pids)
	if err != nil {
		return fmt.Errorf("pidstate: marshal: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("pidstate: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("pidstate: rename %s: %w", p.path, err)
	}
	return nil
}

// Load reads back the pids persisted by a prior Commit, keyed by
// "group/module/instance". A missing file is not an error: it just means
// no adopt-on-exit pass has happened yet.
func (p *PidState) Load() (map[string]int, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pidstate: read %s: %w", p.path, err)
	}

	pids := make(map[string]int)
	if err := json.Unmarshal(data, &pids); err != nil {
		return nil, fmt.Errorf("pidstate: unmarshal %s: %w", p.path, err)
	}
	return pids, nil
}

// Clear removes the persisted pid file once its contents have been
// consumed by the adopting boot, so a future restart never re-adopts
// stale pids left over from two boots ago.
func (p *PidState) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pids = make(map[string]int)
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("pidstate: remove %s: %w", p.path, err)
	}
	return nil
}
