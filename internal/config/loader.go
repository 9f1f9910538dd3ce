package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for veto.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching the veto binary itself (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("veto")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: VETO_CACHE_TTL_MS, VETO_SYNC_POLICY_SYNC_URL, ...
	viper.SetEnvPrefix("VETO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a veto config file with an
// explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".veto"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "veto"))
		}
	} else {
		paths = append(paths, "/etc/veto")
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "veto"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds every Config key for environment variable support.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("default_decision")

	_ = viper.BindEnv("cache.fresh_ms")
	_ = viper.BindEnv("cache.max_ms")
	_ = viper.BindEnv("cache.ttl_ms")
	_ = viper.BindEnv("cache.max_entries")

	_ = viper.BindEnv("breaker.failure_threshold")
	_ = viper.BindEnv("breaker.reset_timeout_ms")
	_ = viper.BindEnv("breaker.half_open_max_attempts")
	_ = viper.BindEnv("breaker.fail_closed")

	_ = viper.BindEnv("retry.max_attempts")
	_ = viper.BindEnv("retry.base_delay_ms")
	_ = viper.BindEnv("retry.max_delay_ms")

	_ = viper.BindEnv("sync.policy_sync_url")
	_ = viper.BindEnv("sync.sync_interval_ms")
	_ = viper.BindEnv("sync.sync_api_key")

	_ = viper.BindEnv("signing.enabled")
	_ = viper.BindEnv("signing.required")
	_ = viper.BindEnv("signing.pinned_version")
	_ = viper.BindEnv("signing.pinned_hash")
	// signing.public_keys is a map; complex to override via env, use the config file.

	_ = viper.BindEnv("explanation.verbosity")
	// explanation.redact_paths is an array; use the config file.

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the Config. Callers needing to override
// DevMode from a CLI flag before validation should use LoadConfigRaw
// instead, then call SetDevDefaults/Validate themselves.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigRaw reads the configuration file and applies production
// defaults, but does NOT apply dev defaults or validate. Use this when a
// CLI flag may still override DevMode before validation runs.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or an empty string if no file was found (env vars only).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
