// Package supervisor is the Reconciliation Loop (spec.md §4.G): it owns
// the Registry, the config lock, and the single-threaded tick that drives
// the restart governor, signal escalation, resource sampling, dialer, and
// stats fetch in a fixed order.
package supervisor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gophpeek/phpeek-pm/internal/config"
	"github.com/gophpeek/phpeek-pm/internal/registry"
)

// BuildRegistry translates a loaded Config into a fresh Registry, in
// deterministic (sorted) order so tick behavior is reproducible across
// reloads (spec.md §3).
func BuildRegistry(cfg *config.Config) *registry.Registry {
	reg := registry.New()

	for _, groupName := range sortedKeys(cfg.Groups) {
		groupCfg := cfg.Groups[groupName]
		group := &registry.Group{Name: groupName, Enabled: groupCfg.Enabled}
		reg.AddGroup(group)

		for _, moduleName := range sortedKeys(groupCfg.Modules) {
			moduleCfg := groupCfg.Modules[moduleName]
			module := &registry.Module{Name: moduleName, Path: moduleCfg.Path, Group: group}
			if err := reg.AddModule(module); err != nil {
				// unreachable: the owning group was just added above
				panic(err)
			}

			for _, instName := range sortedKeys(moduleCfg.Instances) {
				instCfg := moduleCfg.Instances[instName]
				inst := &registry.Instance{
					Name:                 instName,
					Module:               module,
					Args:                 instCfg.Args,
					Enabled:              instCfg.Enabled,
					MaxRestartsPerMinute: instCfg.MaxRestartsPerMinute,
					PID:                  -1,
					ServiceFD:            -1,
					Inputs:               buildInputs(instCfg.InputInterfaces),
					Outputs:              buildOutputs(instCfg.OutputInterfaces),
				}
				if err := reg.AddInstance(inst); err != nil {
					panic(err)
				}
			}
		}
	}

	return reg
}

func buildInputs(ifcs []config.Interface) []registry.InputInterface {
	if len(ifcs) == 0 {
		return nil
	}
	out := make([]registry.InputInterface, len(ifcs))
	for i, ifc := range ifcs {
		out[i] = registry.InputInterface{ID: ifc.ID}
	}
	return out
}

func buildOutputs(ifcs []config.Interface) []registry.OutputInterface {
	if len(ifcs) == 0 {
		return nil
	}
	out := make([]registry.OutputInterface, len(ifcs))
	for i, ifc := range ifcs {
		out[i] = registry.OutputInterface{ID: ifc.ID}
	}
	return out
}

// applyAdoptedPids marks instances whose pid was persisted by a prior
// supervisor's adopt-on-exit (SIGQUIT) pass as already running with
// IsOurChild=false, so the next LivenessRefresh probes them with
// kill(pid, 0) instead of the Restart Governor forking a new copy
// (spec.md §4.H PersistPid/Commit, scenario 6).
func applyAdoptedPids(reg *registry.Registry, persisted map[string]int) {
	for key, pid := range persisted {
		if pid <= 0 {
			continue
		}
		parts := strings.SplitN(key, "/", 3)
		if len(parts) != 3 {
			continue
		}
		inst, ok := reg.Instance(parts[0], parts[1], parts[2])
		if !ok {
			continue
		}
		inst.PID = pid
		inst.Running = true
		inst.IsOurChild = false
		reg.IndexPID(pid, inst)
	}
}

// sortedKeys returns a map's keys sorted lexically, giving the Registry a
// stable iteration order independent of Go's randomized map order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateRegistryAgainstConfig is a defensive check used in tests to
// confirm BuildRegistry produced one instance per configured instance.
func ValidateRegistryAgainstConfig(cfg *config.Config, reg *registry.Registry) error {
	want := 0
	for _, g := range cfg.Groups {
		for _, m := range g.Modules {
			want += len(m.Instances)
		}
	}
	got := len(reg.Instances())
	if got != want {
		return fmt.Errorf("registry has %d instances, config declares %d", got, want)
	}
	return nil
}
