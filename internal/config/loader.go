package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches standard locations for
// aegis.yaml/.yml. The search requires an explicit YAML extension so the
// binary itself is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("aegis")
		viper.SetConfigType("yaml")
	}

	bindEnvKeys()
}

// findConfigFile searches standard locations for an aegis config file.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".aegis"),
		"/etc/aegis",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "aegis"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindEnvKeys binds the plain environment variable names the gateway has
// always honoured. These override any file-provided values.
func bindEnvKeys() {
	_ = viper.BindEnv("server.port", "PORT")
	_ = viper.BindEnv("policy.dir", "POLICY_DIR")
	_ = viper.BindEnv("policy.quiet_period_ms", "POLICY_QUIET_PERIOD_MS")
	_ = viper.BindEnv("telemetry.otel_endpoint", "OTEL_ENDPOINT")
	_ = viper.BindEnv("audit.ring_size", "DECISION_RING_SIZE")
	_ = viper.BindEnv("approval.ttl_seconds", "APPROVAL_TTL_SECONDS")
	_ = viper.BindEnv("dev_mode", "AEGIS_DEV_MODE")
}

// LoadConfig reads the configuration file, applies environment overrides and
// defaults, and validates the result.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults carry the load.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded configuration file, or empty
// when running on env vars and defaults alone.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
