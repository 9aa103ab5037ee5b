package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gophpeek/phpeek-pm/internal/audit"
	"github.com/gophpeek/phpeek-pm/internal/config"
	"github.com/gophpeek/phpeek-pm/internal/metrics"
	"github.com/gophpeek/phpeek-pm/internal/procmgr"
	"github.com/gophpeek/phpeek-pm/internal/registry"
	"github.com/gophpeek/phpeek-pm/internal/resource"
	"github.com/gophpeek/phpeek-pm/internal/servicesock"
	"github.com/gophpeek/phpeek-pm/internal/tracing"
)

// Supervisor owns the Registry, the config lock, and the reconciliation
// tick. Every state mutation holds mu: the tick goroutine, Reload (called
// from the config watcher's goroutine), and Stop/PersistRunningPids (called
// from the signal handler's goroutine) never interleave (spec.md §4.G).
type Supervisor struct {
	mu  sync.Mutex
	reg *registry.Registry
	cfg *config.Config

	procs   *procmgr.Manager
	sampler *resource.Sampler
	dialer  *servicesock.Dialer
	fetcher *servicesock.Fetcher

	events      *registry.EventLog
	eventStream *eventStream
	statsStream *statsStream
	audit       *audit.Logger
	pidState    *config.PidState
	logger      *slog.Logger

	startedAt time.Time

	// stopped/terminateChildren mirror the original design's signal-handler
	// flags, polled once at the top of every tick (spec.md §4.G). stopCh is
	// closed the moment Stop is called so Run wakes immediately instead of
	// waiting out the rest of the current tick interval.
	stopped           bool
	terminateChildren bool
	stopCh            chan struct{}
}

// New assembles a Supervisor from a loaded config, creating the logs
// directory structure required by the Process Manager (spec.md §4.G
// bootstrap).
func New(cfg *config.Config, logger *slog.Logger) (*Supervisor, error) {
	if err := bootstrap(cfg.Global.LogsPath); err != nil {
		return nil, err
	}

	events := registry.NewEventLog(2000)
	reg := BuildRegistry(cfg)

	pidState := config.NewPidState(cfg.Global.LogsPath)
	persisted, err := pidState.Load()
	if err != nil {
		logger.Warn("failed to load persisted pid state", "error", err)
	} else if len(persisted) > 0 {
		applyAdoptedPids(reg, persisted)
		if err := pidState.Clear(); err != nil {
			logger.Warn("failed to clear persisted pid state after adoption", "error", err)
		}
	}

	socketDir := filepath.Join(cfg.Global.LogsPath, "sockets")
	if err := os.MkdirAll(socketDir, 0777); err != nil {
		return nil, fmt.Errorf("supervisor: create socket dir: %w", err)
	}

	dialer := servicesock.New(socketDir, logger, events)

	evStream, err := newEventStream(cfg.Global.LogsPath)
	if err != nil {
		return nil, err
	}
	statStream, err := newStatsStream(cfg.Global.LogsPath)
	if err != nil {
		return nil, err
	}

	auditLogger := audit.NewLogger(logger, cfg.Global.AuditEnabled)

	procs := procmgr.New(cfg.Global.LogsPath, logger, events, auditLogger)
	procs.SetDisconnector(dialer)

	s := &Supervisor{
		reg:         reg,
		cfg:         cfg,
		procs:       procs,
		sampler:     resource.NewSampler(),
		dialer:      dialer,
		fetcher:     servicesock.NewFetcher(dialer, logger, events),
		events:      events,
		eventStream: evStream,
		statsStream: statStream,
		audit:       auditLogger,
		pidState:    pidState,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
	return s, nil
}

// Close releases the event/stats log file sinks. Callers shut these down
// after Run returns.
func (s *Supervisor) Close() error {
	err1 := s.eventStream.Close()
	err2 := s.statsStream.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// EventLog exposes the lifecycle event ring buffer.
func (s *Supervisor) EventLog() *registry.EventLog { return s.events }

// LogSystemStart records the supervisor's own startup to the audit trail.
func (s *Supervisor) LogSystemStart(version string) { s.audit.LogSystemStart(version) }

// LogSystemShutdown records the supervisor's own shutdown to the audit
// trail; callers pass the reason the loop exited and whether it was clean.
func (s *Supervisor) LogSystemShutdown(reason string, graceful bool) {
	s.audit.LogSystemShutdown(reason, graceful)
}

// LogConfigLoad records the initial configuration load to the audit
// trail; callers pass the resolved config path.
func (s *Supervisor) LogConfigLoad(configPath string, instanceCount int) {
	s.audit.LogConfigLoad(configPath, instanceCount)
}

// Registry returns the live Registry. Callers outside the tick goroutine
// (API, TUI) must treat it read-only and should call WithLock for any
// multi-field read that must observe a consistent snapshot.
func (s *Supervisor) Registry() *registry.Registry { return s.reg }

// WithLock runs fn while holding the Supervisor's config lock, letting
// external readers (API, TUI) take a consistent snapshot of the Registry
// without racing the tick goroutine.
func (s *Supervisor) WithLock(fn func(*registry.Registry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.reg)
}

// Stop requests the tick loop to exit. If terminateChildren is true
// (SIGINT/SIGTERM path) every instance is signaled to stop before the loop
// exits; if false (SIGQUIT path) children are left running to be adopted
// on the next boot (spec.md §4.G signal handling). Run wakes immediately
// rather than waiting out the remainder of the current tick interval.
func (s *Supervisor) Stop(terminateChildren bool) {
	s.mu.Lock()
	alreadyStopped := s.stopped
	s.stopped = true
	s.terminateChildren = terminateChildren
	s.mu.Unlock()

	if !alreadyStopped {
		close(s.stopCh)
	}
}

// PersistRunningPids tells the External Config Adapter to record every
// running instance's pid and commits the write, the adopt-on-exit path
// invoked on SIGQUIT before the loop stops (spec.md §4.H PersistPid/
// Commit, scenario 6).
func (s *Supervisor) PersistRunningPids() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.reg.Instances() {
		if inst.Running && inst.PID > 0 {
			s.pidState.PersistPid(inst.Module.Group.Name, inst.Module.Name, inst.Name, inst.PID)
		}
	}
	return s.pidState.Commit()
}

// Run drives the reconciliation loop until Stop is called or ctx is
// canceled, sleeping TickIntervalMS between ticks.
func (s *Supervisor) Run(ctx context.Context) error {
	s.startedAt = time.Now()
	interval := time.Duration(s.cfg.Global.TickIntervalMS) * time.Millisecond

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		stopped := s.stopped
		terminate := s.terminateChildren
		s.mu.Unlock()

		if stopped {
			if terminate {
				s.procs.ShutdownAll(s.reg.Instances())
			}
			return nil
		}

		s.tick(ctx)
		metrics.SetSupervisorUptime(time.Since(s.startedAt).Seconds())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
		case <-ticker.C:
		}
	}
}

// tick performs one pass in the fixed order required by spec.md §4.G: (1)
// restart governor, (2) signal-phase-A, (3) liveness refresh, (4) signal-
// phase-B, (5) resource sampling, (6) dialer, (7) two-phase stats fetch.
func (s *Supervisor) tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := tracing.StartSupervisorSpan(ctx, "phpeek-pm", "tick")
	defer span.End()

	start := time.Now()
	instances := s.reg.Instances()

	s.procs.Restart(instances)
	s.procs.SignalPhaseA(instances)
	s.procs.LivenessRefresh(instances)
	s.procs.SignalPhaseB(instances)

	if errs := s.sampler.Sample(instances); len(errs) > 0 {
		for _, err := range errs {
			s.logger.Warn("resource sample error", "error", err)
		}
	}

	_, dialSpan := tracing.StartProcessManagerSpan(ctx, "dial")
	s.dialer.Tick(instances)
	dialSpan.End()

	_, statsSpan := tracing.StartProcessManagerSpan(ctx, "stats_fetch")
	s.fetcher.Run(instances)
	statsSpan.End()

	for _, inst := range instances {
		metrics.RecordInstanceState(inst.Module.Group.Name, inst.Module.Name, inst.Name, inst.Running, inst.ServiceConnected)
	}

	s.eventStream.drain(s.events)
	s.statsStream.write(instances)

	metrics.RecordTickDuration(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("instance_count", len(instances)))
}
