// Package servicesock is the Service-Socket Dialer (spec.md §4.E) and
// Stats Protocol Client (spec.md §4.F): it connects to each worker's
// control socket on a back-off cadence and exchanges the framed GET/OK
// stats protocol.
package servicesock

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gophpeek/phpeek-pm/internal/metrics"
	"github.com/gophpeek/phpeek-pm/internal/registry"
)

// NReconnect is the dial cadence in ticks (spec.md §4.E): a dial is
// attempted when service_dial_tick % NReconnect == 1.
const NReconnect = 30

// SocketPathTemplate formats the well-known control-socket path for a pid.
// The instance's pid is substituted into "service_<pid>" per spec.md §4.E.
func SocketPathTemplate(baseDir string, pid int) string {
	return fmt.Sprintf("%s/service_%d", baseDir, pid)
}

// Dialer manages the Unix-domain control-socket connections for every
// running instance with configured interfaces.
type Dialer struct {
	baseDir string
	logger  *slog.Logger
	events  *registry.EventLog
	conns   map[string]net.Conn // keyed by instance name
}

// New returns a Dialer that looks for control sockets under baseDir.
func New(baseDir string, logger *slog.Logger, events *registry.EventLog) *Dialer {
	return &Dialer{
		baseDir: baseDir,
		logger:  logger,
		events:  events,
		conns:   make(map[string]net.Conn),
	}
}

func (d *Dialer) recordEvent(inst *registry.Instance, kind registry.EventKind, message string) {
	if d.events == nil {
		return
	}
	d.events.Append(registry.Event{
		Kind:     kind,
		Group:    inst.Module.Group.Name,
		Module:   inst.Module.Name,
		Instance: inst.Name,
		Message:  message,
	})
}

// Conn returns the live connection for an instance, if any.
func (d *Dialer) Conn(instanceName string) (net.Conn, bool) {
	c, ok := d.conns[instanceName]
	return c, ok
}

// Tick advances every eligible instance's dial counter and attempts a dial
// when it crosses the NReconnect cadence, per spec.md §4.E. An instance is
// eligible when it is running, has at least one configured interface, and
// is not already connected.
func (d *Dialer) Tick(instances []*registry.Instance) {
	for _, inst := range instances {
		if !inst.Running || inst.ServiceConnected || inst.NumInterfaces() == 0 {
			continue
		}

		inst.ServiceDialTick++
		if inst.ServiceDialTick%NReconnect != 1 {
			continue
		}

		d.closeStale(inst)
		d.dial(inst)
	}
}

func (d *Dialer) closeStale(inst *registry.Instance) {
	if c, ok := d.conns[inst.Name]; ok {
		c.Close()
		delete(d.conns, inst.Name)
	}
	inst.ServiceFD = -1
}

func (d *Dialer) dial(inst *registry.Instance) {
	path := SocketPathTemplate(d.baseDir, inst.PID)
	conn, err := net.DialTimeout("unix", path, 100*time.Millisecond)
	if err != nil {
		inst.ServiceConnected = false
		d.logger.Debug("dial failed", "instance", inst.Name, "path", path, "error", err)
		d.recordEvent(inst, registry.EventDialFailed, err.Error())
		metrics.RecordDialAttempt(inst.Module.Group.Name, inst.Module.Name, inst.Name, false)
		return
	}

	d.conns[inst.Name] = conn
	inst.ServiceConnected = true
	inst.ServiceDialTick = 0
	inst.ServiceFD = 1 // net.Conn hides the raw descriptor; nonnegative means connected
	d.logger.Debug("dial succeeded", "instance", inst.Name, "path", path)
	d.recordEvent(inst, registry.EventDialSucceeded, "")
	metrics.RecordDialAttempt(inst.Module.Group.Name, inst.Module.Name, inst.Name, true)
}

// Disconnect tears down the connection for an instance, used when the
// stats protocol detects a count mismatch or a protocol error (spec.md
// §4.F consistency checks).
func (d *Dialer) Disconnect(inst *registry.Instance) {
	if c, ok := d.conns[inst.Name]; ok {
		c.Close()
		delete(d.conns, inst.Name)
	}
	wasConnected := inst.ServiceConnected
	inst.ServiceConnected = false
	inst.ServiceFD = -1
	if wasConnected {
		d.recordEvent(inst, registry.EventDisconnected, "")
	}
}
