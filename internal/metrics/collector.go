package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// These gauges/counters expose the reconciliation loop's (spec.md §4.G)
// tick-level outcomes: how many instances are running and connected, how
// many restarts the governor (§4.C) performed, and how long a tick takes.
// Per-process resource gauges (CPU%, memory, threads, FDs) are also
// registered here; they are populated from the gopsutil secondary sampler
// (internal/resource/resource_gopsutil.go) since the primary /proc sampler
// feeds the Registry directly rather than Prometheus.
var (
	InstanceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phpeek_pm_instance_up",
			Help: "Instance running status (1=running, 0=stopped)",
		},
		[]string{"group", "module", "instance"},
	)

	InstanceConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phpeek_pm_instance_service_connected",
			Help: "Instance service-socket connection status (1=connected, 0=not connected)",
		},
		[]string{"group", "module", "instance"},
	)

	InstanceRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phpeek_pm_instance_restarts_total",
			Help: "Total number of Start calls performed by the restart governor",
		},
		[]string{"group", "module", "instance"},
	)

	InstanceRestartLimitReached = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phpeek_pm_instance_restart_limit_reached_total",
			Help: "Total number of times an instance hit max_restarts_per_minute and self-disabled",
		},
		[]string{"group", "module", "instance"},
	)

	DialAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phpeek_pm_service_dial_attempts_total",
			Help: "Total service-socket dial attempts, by outcome",
		},
		[]string{"group", "module", "instance", "outcome"}, // outcome: success, failure
	)

	StatsFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phpeek_pm_stats_fetch_errors_total",
			Help: "Total stats protocol failures, by kind",
		},
		[]string{"group", "module", "instance", "kind"}, // kind: timeout, io, parse, count_mismatch
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phpeek_pm_tick_duration_seconds",
			Help:    "Duration of one reconciliation loop tick",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	SupervisorUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "phpeek_pm_supervisor_uptime_seconds",
			Help: "Supervisor process uptime in seconds",
		},
	)

	ProcessCPUPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phpeek_pm_process_cpu_percent",
			Help: "Process CPU usage percentage (per-core, can exceed 100)",
		},
		[]string{"process", "instance"},
	)

	ProcessMemoryBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phpeek_pm_process_memory_bytes",
			Help: "Process memory usage in bytes",
		},
		[]string{"process", "instance", "type"}, // type: rss, vms
	)

	ProcessMemoryPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phpeek_pm_process_memory_percent",
			Help: "Process memory usage as percentage of total system memory",
		},
		[]string{"process", "instance"},
	)

	ProcessThreads = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phpeek_pm_process_threads",
			Help: "Number of threads in process",
		},
		[]string{"process", "instance"},
	)

	ProcessFileDescriptors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phpeek_pm_process_file_descriptors",
			Help: "Number of open file descriptors (Linux only)",
		},
		[]string{"process", "instance"},
	)

	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phpeek_pm_build_info",
			Help: "phpeek-pm build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordInstanceState sets the running/connected gauges for one instance.
func RecordInstanceState(group, module, instance string, running, connected bool) {
	InstanceUp.WithLabelValues(group, module, instance).Set(boolToFloat(running))
	InstanceConnected.WithLabelValues(group, module, instance).Set(boolToFloat(connected))
}

// RecordRestart records one Start call by the restart governor.
func RecordRestart(group, module, instance string) {
	InstanceRestarts.WithLabelValues(group, module, instance).Inc()
}

// RecordRestartLimitReached records an instance self-disabling after
// exceeding max_restarts_per_minute (spec.md §4.C).
func RecordRestartLimitReached(group, module, instance string) {
	InstanceRestartLimitReached.WithLabelValues(group, module, instance).Inc()
}

// RecordDialAttempt records a service-socket dial outcome (spec.md §4.E).
func RecordDialAttempt(group, module, instance string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	DialAttempts.WithLabelValues(group, module, instance, outcome).Inc()
}

// RecordStatsFetchError records a stats protocol failure (spec.md §7).
func RecordStatsFetchError(group, module, instance, kind string) {
	StatsFetchErrors.WithLabelValues(group, module, instance, kind).Inc()
}

// RecordTickDuration records how long one reconciliation loop tick took.
func RecordTickDuration(seconds float64) {
	TickDuration.Observe(seconds)
}

// SetSupervisorUptime sets the supervisor's uptime gauge.
func SetSupervisorUptime(seconds float64) {
	SupervisorUptime.Set(seconds)
}

// SetBuildInfo sets build information.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
