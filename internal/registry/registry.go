package registry

import "fmt"

// Registry is the in-memory model of groups, modules, and instances. It
// keeps configured order for deterministic iteration and a PID index for
// O(1) reap/liveness lookups. All mutation is expected to happen while the
// caller holds the supervisor's config lock (spec.md invariant I5); the
// Registry itself does not lock.
type Registry struct {
	groupOrder []string
	groups     map[string]*Group

	moduleOrder []string // qualified as "group/module"
	modules     map[string]*Module

	instanceOrder []string // qualified as "group/module/instance"
	instances     map[string]*Instance

	pidIndex map[int]*Instance
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		groups:    make(map[string]*Group),
		modules:   make(map[string]*Module),
		instances: make(map[string]*Instance),
		pidIndex:  make(map[int]*Instance),
	}
}

func moduleKey(group, module string) string {
	return group + "/" + module
}

func instanceKey(group, module, instance string) string {
	return group + "/" + module + "/" + instance
}

// AddGroup inserts or replaces a group. Existing modules/instances under the
// same name are left untouched; callers replace them explicitly via
// AddModule/AddInstance.
func (r *Registry) AddGroup(g *Group) {
	if _, exists := r.groups[g.Name]; !exists {
		r.groupOrder = append(r.groupOrder, g.Name)
	}
	r.groups[g.Name] = g
}

// AddModule inserts or replaces a module under an already-registered group.
func (r *Registry) AddModule(m *Module) error {
	group, ok := r.groups[m.Group.Name]
	if !ok {
		return fmt.Errorf("registry: module %s references unknown group %s", m.Name, m.Group.Name)
	}
	m.Group = group
	key := moduleKey(group.Name, m.Name)
	if _, exists := r.modules[key]; !exists {
		r.moduleOrder = append(r.moduleOrder, key)
	}
	r.modules[key] = m
	return nil
}

// AddInstance inserts or replaces an instance under an already-registered
// module. PID (if any) is indexed for liveness/reap lookups.
func (r *Registry) AddInstance(inst *Instance) error {
	key := moduleKey(inst.Module.Group.Name, inst.Module.Name)
	module, ok := r.modules[key]
	if !ok {
		return fmt.Errorf("registry: instance %s references unknown module %s", inst.Name, key)
	}
	inst.Module = module
	ik := instanceKey(module.Group.Name, module.Name, inst.Name)
	if _, exists := r.instances[ik]; !exists {
		r.instanceOrder = append(r.instanceOrder, ik)
	}
	r.instances[ik] = inst
	if inst.PID > 0 {
		r.pidIndex[inst.PID] = inst
	}
	return nil
}

// RemoveInstance deletes an instance (config removal, spec.md §3 Lifecycle).
func (r *Registry) RemoveInstance(group, module, instance string) {
	ik := instanceKey(group, module, instance)
	if inst, ok := r.instances[ik]; ok {
		if inst.PID > 0 {
			delete(r.pidIndex, inst.PID)
		}
		delete(r.instances, ik)
		r.instanceOrder = removeString(r.instanceOrder, ik)
	}
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

// Instances returns every instance in configured order.
func (r *Registry) Instances() []*Instance {
	out := make([]*Instance, 0, len(r.instanceOrder))
	for _, k := range r.instanceOrder {
		out = append(out, r.instances[k])
	}
	return out
}

// Instance looks up a single instance by its qualified group/module/name.
func (r *Registry) Instance(group, module, name string) (*Instance, bool) {
	inst, ok := r.instances[instanceKey(group, module, name)]
	return inst, ok
}

// Groups returns every group in configured order.
func (r *Registry) Groups() []*Group {
	out := make([]*Group, 0, len(r.groupOrder))
	for _, name := range r.groupOrder {
		out = append(out, r.groups[name])
	}
	return out
}

// Modules returns every module in configured order.
func (r *Registry) Modules() []*Module {
	out := make([]*Module, 0, len(r.moduleOrder))
	for _, k := range r.moduleOrder {
		out = append(out, r.modules[k])
	}
	return out
}

// IndexPID records that pid now belongs to inst, for reap/liveness lookups.
// Call after Process Manager assigns a new pid (spec.md §4.B Start).
func (r *Registry) IndexPID(pid int, inst *Instance) {
	r.pidIndex[pid] = inst
}

// UnindexPID drops a pid from the index (after reap, spec.md §4.B
// LivenessRefresh).
func (r *Registry) UnindexPID(pid int) {
	delete(r.pidIndex, pid)
}

// InstanceByPID finds the instance owning a pid, used to resolve SIGCHLD/
// waitpid results to the instance whose state must transition.
func (r *Registry) InstanceByPID(pid int) (*Instance, bool) {
	inst, ok := r.pidIndex[pid]
	return inst, ok
}
