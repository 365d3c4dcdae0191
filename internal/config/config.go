// Package config provides configuration loading for the Aegis gateway.
//
// Configuration comes from an optional aegis.yaml file with plain
// environment variable overrides (PORT, POLICY_DIR, OTEL_ENDPOINT,
// DECISION_RING_SIZE, APPROVAL_TTL_SECONDS). Environment always wins.
package config

// Config is the top-level gateway configuration.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Policy configures the policy directory and reload behavior.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// Telemetry configures trace export.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// Audit configures the in-memory decision ring.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Approval configures the pending-approval lifecycle.
	Approval ApprovalConfig `yaml:"approval" mapstructure:"approval"`

	// DevMode enables development features (text logs, stdout traces).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Port is the TCP port to bind. Default 8080.
	Port int `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
}

// PolicyConfig configures policy loading.
type PolicyConfig struct {
	// Dir is the directory scanned for *.yaml / *.yml policy files.
	// Default "./policies".
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required"`

	// QuietPeriodMS is the debounce window for filesystem-triggered
	// reloads, in milliseconds. Default 300.
	QuietPeriodMS int `yaml:"quiet_period_ms" mapstructure:"quiet_period_ms" validate:"min=0"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	// OTELEndpoint is the OTLP/HTTP collector endpoint (host:port). Empty
	// disables export.
	OTELEndpoint string `yaml:"otel_endpoint" mapstructure:"otel_endpoint"`
}

// AuditConfig configures the decision ring.
type AuditConfig struct {
	// RingSize is the decision ring capacity. Default 50.
	RingSize int `yaml:"ring_size" mapstructure:"ring_size" validate:"min=1"`
}

// ApprovalConfig configures pending approvals.
type ApprovalConfig struct {
	// TTLSeconds is how long an approval stays releasable. Default 900.
	TTLSeconds int `yaml:"ttl_seconds" mapstructure:"ttl_seconds" validate:"min=1"`
}

// SetDefaults fills zero-valued optional fields.
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Policy.Dir == "" {
		c.Policy.Dir = "./policies"
	}
	if c.Policy.QuietPeriodMS == 0 {
		c.Policy.QuietPeriodMS = 300
	}
	if c.Audit.RingSize == 0 {
		c.Audit.RingSize = 50
	}
	if c.Approval.TTLSeconds == 0 {
		c.Approval.TTLSeconds = 900
	}
}
