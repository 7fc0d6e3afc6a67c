package config

import (
	"strings"
	"time"

	"github.com/saneproj/sane-net/internal/bytesize"
)

// ApplyDefaults fills any unspecified configuration fields with sensible
// defaults. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	applySanedDefaults(&cfg.Server)
	applyNetBackendDefaults(&cfg.NetBackend)
	applyDiscoveryDefaults(&cfg.Discovery)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applySanedDefaults mirrors saned's traditional built-in defaults: port
// 6566, data channel ephemeral range 1024-65535 when unset (spec §6.1,
// §6.4).
func applySanedDefaults(cfg *SanedConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":6566"
	}
	if cfg.DataPortMin == 0 {
		cfg.DataPortMin = 1024
	}
	if cfg.DataPortMax == 0 {
		cfg.DataPortMax = 65535
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.PumpBufferSize == 0 {
		cfg.PumpBufferSize = bytesize.ByteSize(64 * 1024)
	}
	if len(cfg.Backends) == 0 {
		cfg.Backends = []string{"test"}
	}
}

func applyNetBackendDefaults(cfg *NetBackendConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.RPCTimeout == 0 {
		cfg.RPCTimeout = 30 * time.Second
	}
}

func applyDiscoveryDefaults(cfg *DiscoveryConfig) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "sane-net"
	}
}

// GetDefaultConfig returns a fully-defaulted configuration, used when no
// config file is present.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
