package servicesock

import (
	"log/slog"

	"github.com/gophpeek/phpeek-pm/internal/metrics"
	"github.com/gophpeek/phpeek-pm/internal/registry"
)

// Fetcher runs the two-phase stats pass across every connected instance:
// send GET to all of them first, then receive from all of them, so workers
// have wall-time to reply before the serial receive loop begins (spec.md
// §4.G tick step 5).
type Fetcher struct {
	dialer *Dialer
	logger *slog.Logger
	events *registry.EventLog
}

// NewFetcher returns a Fetcher that reads connections from dialer.
func NewFetcher(dialer *Dialer, logger *slog.Logger, events *registry.EventLog) *Fetcher {
	return &Fetcher{dialer: dialer, logger: logger, events: events}
}

// Run performs one full stats pass over instances, mutating the registry
// in place for every instance whose reply passes the consistency check.
func (f *Fetcher) Run(instances []*registry.Instance) {
	var pending []*registry.Instance
	for _, inst := range instances {
		if !inst.ServiceConnected {
			continue
		}
		conn, ok := f.dialer.Conn(inst.Name)
		if !ok {
			inst.ServiceConnected = false
			continue
		}
		if err := SendGet(conn); err != nil {
			f.logger.Debug("stats GET failed", "instance", inst.Name, "error", err)
			f.dialer.Disconnect(inst)
			continue
		}
		pending = append(pending, inst)
	}

	for _, inst := range pending {
		f.recv(inst)
	}
}

func (f *Fetcher) recv(inst *registry.Instance) {
	conn, ok := f.dialer.Conn(inst.Name)
	if !ok {
		return
	}

	payload, err := RecvOK(conn)
	if err != nil {
		f.logger.Debug("stats recv failed", "instance", inst.Name, "error", err)
		f.recordEvent(inst, registry.EventStatsParseError, err.Error())
		metrics.RecordStatsFetchError(inst.Module.Group.Name, inst.Module.Name, inst.Name, "io")
		f.dialer.Disconnect(inst)
		return
	}

	if err := ApplyStats(inst, payload); err != nil {
		if _, ok := err.(*ErrCountMismatch); ok {
			f.recordEvent(inst, registry.EventStatsMismatch, err.Error())
			metrics.RecordStatsFetchError(inst.Module.Group.Name, inst.Module.Name, inst.Name, "count_mismatch")
		} else {
			f.recordEvent(inst, registry.EventStatsParseError, err.Error())
			metrics.RecordStatsFetchError(inst.Module.Group.Name, inst.Module.Name, inst.Name, "parse")
		}
		f.logger.Warn("stats apply failed", "instance", inst.Name, "error", err)
		f.dialer.Disconnect(inst)
	}
}

func (f *Fetcher) recordEvent(inst *registry.Instance, kind registry.EventKind, message string) {
	if f.events == nil {
		return
	}
	f.events.Append(registry.Event{
		Kind:     kind,
		Group:    inst.Module.Group.Name,
		Module:   inst.Module.Name,
		Instance: inst.Name,
		Message:  message,
	})
}
