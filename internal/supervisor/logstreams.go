package supervisor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gophpeek/phpeek-pm/internal/registry"
)

// eventStream mirrors new registry.Event entries into a dedicated
// append-only log file (spec.md §6 instances_events.log; the file is not
// rotated), the way the teacher's
// internal/logger/process_writer.go gives each worker's stdio its own file
// sink alongside the in-memory buffer.
type eventStream struct {
	logger *slog.Logger
	file   *os.File
	marker uint64
}

func newEventStream(logsPath string) (*eventStream, error) {
	f, err := os.OpenFile(filepath.Join(logsPath, "instances_events.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open instances_events.log: %w", err)
	}
	return &eventStream{
		logger: slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})),
		file:   f,
	}, nil
}

// drain writes every event appended to the log since the last call.
func (s *eventStream) drain(log *registry.EventLog) {
	var events []registry.Event
	events, s.marker = log.Since(s.marker)
	for _, e := range events {
		s.logger.Info(string(e.Kind),
			"group", e.Group,
			"module", e.Module,
			"instance", e.Instance,
			"message", e.Message,
			"timestamp", e.Timestamp,
		)
	}
}

func (s *eventStream) Close() error {
	return s.file.Close()
}

// statsStream writes one JSON line per instance per tick with its latest
// interface counters (spec.md §6 instances_stats.log), appended to without
// rotation, like eventStream.
type statsStream struct {
	file *os.File
	enc  *json.Encoder
}

func newStatsStream(logsPath string) (*statsStream, error) {
	f, err := os.OpenFile(filepath.Join(logsPath, "instances_stats.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open instances_stats.log: %w", err)
	}
	return &statsStream{file: f, enc: json.NewEncoder(f)}, nil
}

type statsLine struct {
	Timestamp time.Time           `json:"timestamp"`
	Group     string              `json:"group"`
	Module    string              `json:"module"`
	Instance  string              `json:"instance"`
	Running   bool                `json:"running"`
	Connected bool                `json:"connected"`
	CPUUser   uint64              `json:"cpu_pct_user"`
	CPUKernel uint64              `json:"cpu_pct_kernel"`
	MemRSS    uint64              `json:"mem_rss"`
	Inputs    []registry.InputInterface  `json:"inputs"`
	Outputs   []registry.OutputInterface `json:"outputs"`
}

// write appends one stats line per instance for the current tick.
func (s *statsStream) write(instances []*registry.Instance) {
	now := time.Now()
	for _, inst := range instances {
		_ = s.enc.Encode(statsLine{
			Timestamp: now,
			Group:     inst.Module.Group.Name,
			Module:    inst.Module.Name,
			Instance:  inst.Name,
			Running:   inst.Running,
			Connected: inst.ServiceConnected,
			CPUUser:   inst.CPUPctUser,
			CPUKernel: inst.CPUPctKernel,
			MemRSS:    inst.MemRSS,
			Inputs:    inst.Inputs,
			Outputs:   inst.Outputs,
		})
	}
}

func (s *statsStream) Close() error {
	return s.file.Close()
}
