// Package config loads and validates sane-net's process configuration: the
// saned supervisor's listen/access-control/auth settings and the net backend
// client's host list and timeouts. Layout and precedence follow the teacher
// repository's viper-based pattern (defaults < config file < environment, all
// three merged into one validated struct).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/saneproj/sane-net/internal/bytesize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is sane-net's complete process configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (SANE_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	Logging         LoggingConfig         `mapstructure:"logging" yaml:"logging"`
	Metrics         MetricsConfig         `mapstructure:"metrics" yaml:"metrics"`
	ShutdownTimeout time.Duration         `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
	Server          SanedConfig           `mapstructure:"saned" yaml:"saned"`
	Auth            AuthConfig            `mapstructure:"auth" yaml:"auth"`
	AccessControl   AccessControlConfig   `mapstructure:"access_control" yaml:"access_control"`
	Discovery       DiscoveryConfig       `mapstructure:"discovery" yaml:"discovery"`
	NetBackend      NetBackendConfig      `mapstructure:"net_backend" yaml:"net_backend"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// SanedConfig configures the saned supervisor's listening behavior
// (spec C6).
type SanedConfig struct {
	// ListenAddr is the control-connection listen address, e.g. ":6566".
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// DataPortMin/DataPortMax bound the ephemeral data-channel listening
	// port range saned binds for each START (spec §4.3, §6.4).
	DataPortMin int `mapstructure:"data_port_min" validate:"omitempty,min=1,max=65535" yaml:"data_port_min"`
	DataPortMax int `mapstructure:"data_port_max" validate:"omitempty,min=1,max=65535,gtefield=DataPortMin" yaml:"data_port_max"`

	// Standalone, when true, runs saned as its own daemon listening
	// directly on ListenAddr; when false, it expects to be launched
	// inetd/systemd-style on stdin/stdout for a single connection.
	Standalone bool `mapstructure:"standalone" yaml:"standalone"`

	// PidFile is where the supervisor records its PID in standalone mode.
	PidFile string `mapstructure:"pid_file" yaml:"pid_file,omitempty"`

	// RunAsUser/RunAsGroup name the unprivileged identity the supervisor
	// drops privileges to after binding ListenAddr (spec §6.1 Design
	// Notes: "binds as root, serves as nobody").
	RunAsUser  string `mapstructure:"run_as_user" yaml:"run_as_user,omitempty"`
	RunAsGroup string `mapstructure:"run_as_group" yaml:"run_as_group,omitempty"`

	// IdleTimeout closes a connection that issues no RPC within this
	// window (spec §6.1 watchdog).
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// PumpBufferSize sizes the ring buffer saned's pump loop uses to
	// relay scan data from backend to data channel (spec §6.4).
	PumpBufferSize bytesize.ByteSize `mapstructure:"pump_buffer_size" yaml:"pump_buffer_size,omitempty"`

	// Backends lists which backend drivers (internal/backend/Registry
	// names) this saned instance exposes through GET_DEVICES.
	Backends []string `mapstructure:"backends" yaml:"backends"`
}

// AuthConfig locates the credentials file saned's auth module consults
// (spec C3, grounded in sanei_auth.h).
type AuthConfig struct {
	// CredentialsFile is a "user:password:resource" file, one entry per
	// line, passwords in plaintext; the AUTHORIZE exchange digests them
	// with MD5.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty"`
}

// AccessControlConfig restricts which peers may connect, mirroring
// saned.conf's host-pattern list and /etc/hosts.equiv fallback.
type AccessControlConfig struct {
	// AllowedHosts is a list of hostnames, IPs, or CIDR ranges permitted
	// to connect, or "+" to allow all. An empty list grants no remote host;
	// loopback and the server's own addresses are always allowed.
	AllowedHosts []string `mapstructure:"allowed_hosts" yaml:"allowed_hosts,omitempty"`

	// HostsEquivFile, if set, is consulted as an additional allow-list
	// source (traditional saned.conf behavior).
	HostsEquivFile string `mapstructure:"hosts_equiv_file" yaml:"hosts_equiv_file,omitempty"`
}

// DiscoveryConfig controls mDNS advertisement of the saned control port.
type DiscoveryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name,omitempty"`
}

// NetBackendConfig configures the net backend client (spec C4): which
// saned hosts to contact and connection timeouts, mirroring SANE_NET_HOSTS
// and net.conf.
type NetBackendConfig struct {
	// Hosts lists "host[:port]" entries to probe for devices, the
	// net.conf / SANE_NET_HOSTS equivalent.
	Hosts []string `mapstructure:"hosts" yaml:"hosts,omitempty"`

	// ConnectTimeout bounds the initial TCP connect (spec §5.1).
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`

	// RPCTimeout bounds any single request/reply round trip.
	RPCTimeout time.Duration `mapstructure:"rpc_timeout" yaml:"rpc_timeout"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration with a user-friendly error when the config
// file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please create one, or pass --config with its path.",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sane-net")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "sane-net")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
