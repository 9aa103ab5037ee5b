package config

// Config is the declarative configuration tree: groups of modules, each
// module an executable owning one or more instances.
type Config struct {
	Version string         `yaml:"version" json:"version"`
	Global  GlobalConfig   `yaml:"global" json:"global"`
	Groups  map[string]*Group `yaml:"groups" json:"groups"`
}

// GlobalConfig holds settings shared by the whole supervisor process.
type GlobalConfig struct {
	LogsPath              string `yaml:"logs_path" json:"logs_path"`
	LogLevel              string `yaml:"log_level" json:"log_level"`   // debug | info | warn | error
	LogFormat             string `yaml:"log_format" json:"log_format"` // json | text
	TickIntervalMS        int    `yaml:"tick_interval_ms" json:"tick_interval_ms"`
	MetricsEnabled        bool   `yaml:"metrics_enabled" json:"metrics_enabled"`
	MetricsPort           int    `yaml:"metrics_port" json:"metrics_port"`
	MetricsPath           string `yaml:"metrics_path" json:"metrics_path"`
	APIEnabled            bool   `yaml:"api_enabled" json:"api_enabled"`
	APIPort               int    `yaml:"api_port" json:"api_port"`
	APIAuth               string `yaml:"api_auth" json:"api_auth"`
	TracingEnabled        bool   `yaml:"tracing_enabled" json:"tracing_enabled"`
	TracingExporter       string `yaml:"tracing_exporter" json:"tracing_exporter"` // stdout | otlp
	TracingEndpoint       string `yaml:"tracing_endpoint" json:"tracing_endpoint"`
	ZombieReapIntervalSec int    `yaml:"zombie_reap_interval_seconds" json:"zombie_reap_interval_seconds"`
	AuditEnabled          bool   `yaml:"audit_enabled" json:"audit_enabled"`
}

// Group is a named collection of modules that can be enabled/disabled as a
// unit (spec.md §3 Group).
type Group struct {
	Enabled bool               `yaml:"enabled" json:"enabled"`
	Modules map[string]*Module `yaml:"modules" json:"modules"`
}

// Module binds one executable to a set of instances that run it
// (spec.md §3 Module).
type Module struct {
	Path      string              `yaml:"path" json:"path"`
	Instances map[string]*Instance `yaml:"instances" json:"instances"`
}

// Instance is one configured running copy of a module's executable
// (spec.md §3 Instance).
type Instance struct {
	Enabled             bool         `yaml:"enabled" json:"enabled"`
	Args                []string     `yaml:"args" json:"args"`
	MaxRestartsPerMinute uint        `yaml:"max_restarts_per_minute" json:"max_restarts_per_minute"`
	InputInterfaces     []Interface `yaml:"input_interfaces" json:"input_interfaces"`
	OutputInterfaces    []Interface `yaml:"output_interfaces" json:"output_interfaces"`
}

// Interface is a single configured input or output port of an instance.
// The ID is authoritative locally; the worker's reported ID at stats time
// is matched positionally, per spec.md §4.F.
type Interface struct {
	ID string `yaml:"id" json:"id"`
}
