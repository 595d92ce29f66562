package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/resolver"
)

// Environment variables applied over file layers
const (
	EnvTarget        = "FUNCTION_TARGET"
	EnvSignatureType = "FUNCTION_SIGNATURE_TYPE"
	EnvArtifact      = "FUNCTION_ARTIFACT"
	EnvTimeoutSec    = "FUNCTION_TIMEOUT_SEC"
	EnvPort          = "PORT"
	EnvLogLevel      = "FNRUNTIME_LOG_LEVEL"
	EnvLogFormat     = "FNRUNTIME_LOG_FORMAT"
	EnvMetricsPort   = "FNRUNTIME_METRICS_PORT"
	EnvNATSURL       = "FNRUNTIME_NATS_URL"
	EnvNATSSubject   = "FNRUNTIME_NATS_SUBJECT"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

// Config is the complete runtime configuration
type Config struct {
	Function FunctionConfig `json:"function"`
	Server   ServerConfig   `json:"server"`
	Log      LogConfig      `json:"log"`
	Metrics  MetricsConfig  `json:"metrics"`
	NATS     NATSConfig     `json:"nats"`
}

// FunctionConfig selects and bounds the function being served
type FunctionConfig struct {
	Target        string   `json:"target"`
	SignatureType string   `json:"signature_type,omitempty"`
	Artifact      string   `json:"artifact,omitempty"`
	Timeout       Duration `json:"timeout"` // 0 disables the deadline
}

// ServerConfig configures the function's HTTP listener
type ServerConfig struct {
	Port            int      `json:"port"`
	MaxRequestSize  int64    `json:"max_request_size"` // bytes, 0 = unlimited
	ReadTimeout     Duration `json:"read_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// LogConfig configures the default slog logger
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// MetricsConfig configures the metrics and health server. Port 0 disables it.
type MetricsConfig struct {
	Port int    `json:"port"`
	Path string `json:"path"`
}

// NATSConfig configures the optional NATS event source
type NATSConfig struct {
	Enabled       bool     `json:"enabled"`
	URL           string   `json:"url"`
	Subject       string   `json:"subject,omitempty"`
	Queue         string   `json:"queue,omitempty"`
	Workers       int      `json:"workers"`
	QueueSize     int      `json:"queue_size"`
	RateLimit     float64  `json:"rate_limit,omitempty"`
	RateBurst     int      `json:"rate_burst,omitempty"`
	MaxReconnects int      `json:"max_reconnects"`
	ReconnectWait Duration `json:"reconnect_wait"`
	PingInterval  Duration `json:"ping_interval"`
	DrainTimeout  Duration `json:"drain_timeout"`

	// Circuit breaker opening on repeated connect failures
	CircuitThreshold int      `json:"circuit_threshold"`
	MaxBackoff       Duration `json:"max_backoff"`

	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`

	// TLS is enabled when any of these is set
	TLSCert string `json:"tls_cert,omitempty"`
	TLSKey  string `json:"tls_key,omitempty"`
	TLSCA   string `json:"tls_ca,omitempty"`
}

// TLSEnabled reports whether a TLS file was configured
func (n NATSConfig) TLSEnabled() bool {
	return n.TLSCert != "" || n.TLSKey != "" || n.TLSCA != ""
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Function: FunctionConfig{
			Timeout: Duration(5 * time.Minute),
		},
		Server: ServerConfig{
			Port:            8080,
			MaxRequestSize:  10 << 20,
			ReadTimeout:     Duration(time.Minute),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
		NATS: NATSConfig{
			URL:              "nats://localhost:4222",
			Queue:            "fnruntime",
			Workers:          10,
			QueueSize:        100,
			MaxReconnects:    -1,
			ReconnectWait:    Duration(2 * time.Second),
			PingInterval:     Duration(30 * time.Second),
			DrainTimeout:     Duration(30 * time.Second),
			CircuitThreshold: 5,
			MaxBackoff:       Duration(time.Minute),
		},
	}
}

// Validate checks the configuration and normalizes case-insensitive fields
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
			"Config", "Validate", "config validation")
	}

	if c.Function.Target == "" {
		return invalid("function.target is required")
	}
	if _, err := resolver.ParseTarget(c.Function.Target); err != nil {
		return invalid("function.target %q: %v", c.Function.Target, err)
	}

	c.Function.SignatureType = strings.ToLower(c.Function.SignatureType)
	if c.Function.SignatureType != "" && !slices.Contains(resolver.SignatureTypes, c.Function.SignatureType) {
		return invalid("function.signature_type %q must be one of %v", c.Function.SignatureType, resolver.SignatureTypes)
	}
	if c.Function.Timeout < 0 {
		return invalid("function.timeout must not be negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxRequestSize < 0 {
		return invalid("server.max_request_size must not be negative")
	}
	if c.Server.ReadTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return invalid("server timeouts must not be negative")
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	if !slices.Contains(logLevels, c.Log.Level) {
		return invalid("log.level %q must be one of %v", c.Log.Level, logLevels)
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	if !slices.Contains(logFormats, c.Log.Format) {
		return invalid("log.format %q must be one of %v", c.Log.Format, logFormats)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return invalid("metrics.port %d out of range", c.Metrics.Port)
	}
	if c.Metrics.Port != 0 && c.Metrics.Port == c.Server.Port {
		return invalid("metrics.port must differ from server.port")
	}
	if c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path must start with /")
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return invalid("nats.url is required when nats is enabled")
		}
		if c.NATS.Subject == "" {
			return invalid("nats.subject is required when nats is enabled")
		}
		if c.NATS.Workers < 1 || c.NATS.QueueSize < 1 {
			return invalid("nats.workers and nats.queue_size must be positive")
		}
		if c.NATS.RateLimit < 0 || c.NATS.RateBurst < 0 {
			return invalid("nats.rate_limit and nats.rate_burst must not be negative")
		}
		if c.NATS.PingInterval < 0 || c.NATS.DrainTimeout < 0 || c.NATS.MaxBackoff < 0 {
			return invalid("nats durations must not be negative")
		}
		if c.NATS.CircuitThreshold < 0 {
			return invalid("nats.circuit_threshold must not be negative")
		}
		if (c.NATS.TLSCert == "") != (c.NATS.TLSKey == "") {
			return invalid("nats.tls_cert and nats.tls_key must be set together")
		}
	}

	return nil
}

// String returns the configuration as JSON with credentials redacted
func (c *Config) String() string {
	redacted := *c
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "[REDACTED]"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}

// Loader builds a Config from defaults, file layers and the environment
type Loader struct {
	layers     []string
	validation bool
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers: []string{},
	}
}

// AddLayer adds a JSON or YAML file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, every layer and the environment, in that order.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "load "+path)
		}
		if cfg, err = mergeFromMap(cfg, raw); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "merge "+path)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRaw reads a layer as a generic map. The extension selects the decoder.
func loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch format {
	case formatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}
	if err := checkDepth(raw, 1); err != nil {
		return nil, err
	}
	return raw, nil
}

// mergeFromMap overrides only the fields present in override
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}

	return result
}

// applyEnvOverrides applies the environment over the merged layers.
// Malformed numeric values are rejected rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	var firstErr error
	env := func(key string) (string, bool) {
		val := os.Getenv(key)
		if val == "" {
			return "", false
		}
		if err := validateEnvVar(key, val); err != nil {
			if firstErr == nil {
				firstErr = errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "read "+key)
			}
			return "", false
		}
		return val, true
	}
	envInt := func(key string, dst *int) {
		val, ok := env(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "parse "+key)
			}
			return
		}
		*dst = n
	}

	if val, ok := env(EnvTarget); ok {
		cfg.Function.Target = val
	}
	if val, ok := env(EnvSignatureType); ok {
		cfg.Function.SignatureType = val
	}
	if val, ok := env(EnvArtifact); ok {
		cfg.Function.Artifact = val
	}

	timeoutSec := -1
	envInt(EnvTimeoutSec, &timeoutSec)
	if timeoutSec >= 0 {
		cfg.Function.Timeout = Duration(time.Duration(timeoutSec) * time.Second)
	}

	envInt(EnvPort, &cfg.Server.Port)
	envInt(EnvMetricsPort, &cfg.Metrics.Port)

	if val, ok := env(EnvLogLevel); ok {
		cfg.Log.Level = val
	}
	if val, ok := env(EnvLogFormat); ok {
		cfg.Log.Format = val
	}

	if val, ok := env(EnvNATSURL); ok {
		cfg.NATS.URL = val
	}
	if val, ok := env(EnvNATSSubject); ok {
		cfg.NATS.Subject = val
		cfg.NATS.Enabled = true
	}

	return firstErr
}
