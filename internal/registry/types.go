// Package registry is the in-memory model of groups, modules, instances,
// and their interfaces — the Instance Registry component of the supervisor
// (spec.md §4.A). It holds no policy: every mutation happens on the locked
// path owned by the reconciliation loop or a config change callback.
package registry

import "time"

// IfcType mirrors the worker interface type byte vocabulary inherited from
// the original NEMEA supervisor (original_source/supervisor.h).
type IfcType byte

const (
	IfcTypeTCP        IfcType = 1
	IfcTypeUnixSocket IfcType = 2
	IfcTypeService    IfcType = 3
	IfcTypeFile       IfcType = 4
	IfcTypeBlackhole  IfcType = 5
)

// IfcState mirrors the worker interface connection-state byte vocabulary.
type IfcState byte

const (
	IfcStateUninitialized IfcState = 0
	IfcStateOK            IfcState = 1
	IfcStateError         IfcState = 2
)

// InputInterface is a unidirectional inbound data port of a worker
// (spec.md §3, Interface (input)).
type InputInterface struct {
	ID      string
	Type    IfcType
	State   IfcState
	RecvMsg uint64
	RecvBuf uint64
}

// OutputInterface is a unidirectional outbound data port of a worker
// (spec.md §3, Interface (output)).
type OutputInterface struct {
	ID          string
	Type        IfcType
	SentMsg     uint64
	SentBuf     uint64
	DroppedMsg  uint64
	Autoflush   uint64
	NumClients  uint32
}

// Instance is one configured, observed, running copy of a Module's
// executable (spec.md §3 Instance; invariants I1-I4).
type Instance struct {
	Name   string
	Module *Module // back-reference

	// Desired configuration.
	Args                 []string
	Enabled              bool
	MaxRestartsPerMinute uint

	// Observed process state.
	IsOurChild bool
	PID        int // -1 when none
	Running    bool

	LastStartTime      time.Time
	RestartWindowStart time.Time
	RestartsInWindow   uint

	SigintSentAt time.Time // zero value if none

	// Interfaces, in configured order.
	Inputs  []InputInterface
	Outputs []OutputInterface

	// Service socket state (invariant I2).
	ServiceFD        int // -1 when unconnected
	ServiceConnected bool
	ServiceDialTick  uint

	// Resource sample (spec.md §4.D).
	CPUUserTicks   uint64
	CPUKernelTicks uint64
	CPUPctUser     uint64
	CPUPctKernel   uint64
	MemVMS         uint64
	MemRSS         uint64

	// prevUserTicks/prevKernelTicks are the previous tick's raw jiffie
	// counters, used to compute the CPU percentage deltas in §4.D.2.
	prevUserTicks   uint64
	prevKernelTicks uint64
}

// PrevCPUTicks returns the previous tick's raw user/kernel jiffie counts,
// used by the Resource Sampler to compute deltas.
func (i *Instance) PrevCPUTicks() (user, kernel uint64) {
	return i.prevUserTicks, i.prevKernelTicks
}

// SetPrevCPUTicks stores this tick's raw counters as the baseline for the
// next tick's delta computation.
func (i *Instance) SetPrevCPUTicks(user, kernel uint64) {
	i.prevUserTicks, i.prevKernelTicks = user, kernel
}

// NumInterfaces returns the total configured interface count, used by the
// Service-Socket Dialer's gating condition (spec.md §4.E).
func (i *Instance) NumInterfaces() int {
	return len(i.Inputs) + len(i.Outputs)
}

// Module binds one executable to a set of instances (spec.md §3 Module).
type Module struct {
	Name string
	Path string
	Group *Group // back-reference
}

// Group is a named, enable-able collection of modules (spec.md §3 Group).
type Group struct {
	Name    string
	Enabled bool
}
