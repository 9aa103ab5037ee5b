// Package audit provides structured audit logging for supervisor lifecycle
// events, adapted from the teacher's internal/audit package but trimmed to
// this domain: there is no HTTP API accepting mutating admin requests here,
// so the ACL/auth/rate-limit event categories are dropped and only the
// system- and instance-lifecycle categories remain (spec.md §4.C restart
// limit, §6 event log).
package audit

import (
	"encoding/json"
	"log/slog"
	"time"
)

// EventType represents the category of audit event.
type EventType string

const (
	EventInstanceStart        EventType = "instance.start"
	EventInstanceStop         EventType = "instance.stop"
	EventInstanceReaped       EventType = "instance.reaped"
	EventInstanceRestart      EventType = "instance.restart"
	EventInstanceRestartLimit EventType = "instance.restart_limit_reached"

	EventConfigLoad   EventType = "config.load"
	EventConfigReload EventType = "config.reload"

	EventSystemStart    EventType = "system.start"
	EventSystemShutdown EventType = "system.shutdown"
)

// Status represents the outcome of an audited action.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusError   Status = "error"
)

// Resource identifies what an audit event was about.
type Resource struct {
	Type     string `json:"type"` // "instance", "config", "system"
	Group    string `json:"group,omitempty"`
	Module   string `json:"module,omitempty"`
	Instance string `json:"instance,omitempty"`
	ID       string `json:"id,omitempty"` // config path / system component name
}

// Event is a single audit log entry.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType EventType              `json:"event_type"`
	Action    string                 `json:"action"`
	Resource  Resource               `json:"resource"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Logger provides structured audit logging, gated by an enabled flag so it
// can be wired unconditionally into the supervisor and still respect
// global.audit_enabled-style configuration without call sites checking it.
type Logger struct {
	logger  *slog.Logger
	enabled bool
}

// NewLogger returns an audit Logger. When enabled is false, Log is a no-op.
func NewLogger(log *slog.Logger, enabled bool) *Logger {
	return &Logger{logger: log.With("subsystem", "audit"), enabled: enabled}
}

// Log records one audit event, leveled by its Status.
func (l *Logger) Log(event Event) {
	if !l.enabled {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eventJSON, _ := json.Marshal(event)
	args := []any{
		"event_type", event.EventType,
		"action", event.Action,
		"resource", event.Resource.ID,
		"group", event.Resource.Group,
		"module", event.Resource.Module,
		"instance", event.Resource.Instance,
		"status", event.Status,
		"message", event.Message,
		"event_json", string(eventJSON),
	}

	switch event.Status {
	case StatusFailure, StatusError:
		l.logger.Error("audit_event", args...)
	default:
		l.logger.Info("audit_event", args...)
	}
}

// LogInstanceStart records a successful instance fork/exec.
func (l *Logger) LogInstanceStart(group, module, instance string, pid int) {
	l.Log(Event{
		EventType: EventInstanceStart,
		Action:    "start",
		Resource:  Resource{Type: "instance", Group: group, Module: module, Instance: instance},
		Status:    StatusSuccess,
		Message:   "instance started",
		Context:   map[string]interface{}{"pid": pid},
	})
}

// LogInstanceStop records a signal-driven instance stop.
func (l *Logger) LogInstanceStop(group, module, instance string, pid int, reason string) {
	l.Log(Event{
		EventType: EventInstanceStop,
		Action:    "stop",
		Resource:  Resource{Type: "instance", Group: group, Module: module, Instance: instance},
		Status:    StatusSuccess,
		Message:   "instance stopped",
		Context:   map[string]interface{}{"pid": pid, "reason": reason},
	})
}

// LogInstanceReaped records a reap of an exited child or the detection of
// an adopted instance's disappearance.
func (l *Logger) LogInstanceReaped(group, module, instance string, pid int, detail string) {
	l.Log(Event{
		EventType: EventInstanceReaped,
		Action:    "reap",
		Resource:  Resource{Type: "instance", Group: group, Module: module, Instance: instance},
		Status:    StatusSuccess,
		Message:   "instance reaped",
		Context:   map[string]interface{}{"pid": pid, "detail": detail},
	})
}

// LogInstanceRestart records a restart attempt by the Restart Governor.
func (l *Logger) LogInstanceRestart(group, module, instance string, attempt uint) {
	l.Log(Event{
		EventType: EventInstanceRestart,
		Action:    "restart",
		Resource:  Resource{Type: "instance", Group: group, Module: module, Instance: instance},
		Status:    StatusSuccess,
		Message:   "instance restarted",
		Context:   map[string]interface{}{"attempt_in_window": attempt},
	})
}

// LogRestartLimitReached records the original NEMEA supervisor's "module
// restart limit reached" condition: the instance is disabled until an
// operator re-enables it (spec.md §4.C).
func (l *Logger) LogRestartLimitReached(group, module, instance string, maxPerMinute uint) {
	l.Log(Event{
		EventType: EventInstanceRestartLimit,
		Action:    "disable",
		Resource:  Resource{Type: "instance", Group: group, Module: module, Instance: instance},
		Status:    StatusError,
		Message:   "restart limit reached, instance disabled",
		Context:   map[string]interface{}{"max_restarts_per_minute": maxPerMinute},
	})
}

// LogConfigLoad records a successful initial configuration load.
func (l *Logger) LogConfigLoad(configFile string, instanceCount int) {
	l.Log(Event{
		EventType: EventConfigLoad,
		Action:    "load",
		Resource:  Resource{Type: "config", ID: configFile},
		Status:    StatusSuccess,
		Message:   "configuration loaded",
		Context:   map[string]interface{}{"instance_count": instanceCount},
	})
}

// LogConfigReload records a hot-reload triggered by the config watcher.
func (l *Logger) LogConfigReload(configFile string) {
	l.Log(Event{
		EventType: EventConfigReload,
		Action:    "reload",
		Resource:  Resource{Type: "config", ID: configFile},
		Status:    StatusSuccess,
		Message:   "configuration reloaded",
	})
}

// LogSystemStart records supervisor process start.
func (l *Logger) LogSystemStart(version string) {
	l.Log(Event{
		EventType: EventSystemStart,
		Action:    "start",
		Resource:  Resource{Type: "system", ID: "phpeek-pm"},
		Status:    StatusSuccess,
		Message:   "phpeek-pm started",
		Context:   map[string]interface{}{"version": version},
	})
}

// LogSystemShutdown records supervisor process shutdown.
func (l *Logger) LogSystemShutdown(reason string, graceful bool) {
	status := StatusSuccess
	if !graceful {
		status = StatusError
	}
	l.Log(Event{
		EventType: EventSystemShutdown,
		Action:    "shutdown",
		Resource:  Resource{Type: "system", ID: "phpeek-pm"},
		Status:    status,
		Message:   "phpeek-pm shutdown",
		Context:   map[string]interface{}{"reason": reason, "graceful": graceful},
	})
}
