package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/pkg/hostenv"
	"github.com/loomworks/loom/pkg/telemetry"
)

var validate = validator.New()

// Config is the loom host configuration file.
type Config struct {
	Host      HostConfig      `yaml:"host"`
	Engine    EngineConfig    `yaml:"engine"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// HostConfig configures the host environment bindings.
type HostConfig struct {
	// KVBackend selects "memory" or "sqlite".
	KVBackend string `yaml:"kvBackend" validate:"omitempty,oneof=memory sqlite"`

	// StorePath is the SQLite database path.
	StorePath string `yaml:"storePath"`

	// HTTPTimeoutMS bounds the underlying HTTP client.
	HTTPTimeoutMS int `yaml:"httpTimeoutMs" validate:"gte=0"`

	// QueueBuffer is the per-topic queue capacity.
	QueueBuffer int `yaml:"queueBuffer" validate:"gte=0"`
}

// EngineConfig configures the executor.
type EngineConfig struct {
	// StrictValidate rejects steps declaring unknown capability keys.
	StrictValidate bool `yaml:"strictValidate"`
}

// TelemetryConfig configures logging, tracing, and metrics.
type TelemetryConfig struct {
	LogLevel  string `yaml:"logLevel" validate:"omitempty,oneof=trace debug info warn error"`
	LogFormat string `yaml:"logFormat" validate:"omitempty,oneof=console json"`

	TracingEnabled  bool    `yaml:"tracingEnabled"`
	TraceExporter   string  `yaml:"traceExporter" validate:"omitempty,oneof=otlp stdout none"`
	TraceEndpoint   string  `yaml:"traceEndpoint"`
	TraceSampleRate float64 `yaml:"traceSampleRate" validate:"gte=0,lte=1"`

	MetricsEnabled bool   `yaml:"metricsEnabled"`
	MetricsListen  string `yaml:"metricsListen"`
}

// Default returns the configuration used when no file is given:
// in-memory KV, strict validation off, console logging at info.
func Default() Config {
	return Config{
		Host: HostConfig{KVBackend: hostenv.KVMemory},
		Telemetry: TelemetryConfig{
			LogLevel:        "info",
			LogFormat:       "console",
			TraceExporter:   "stdout",
			TraceSampleRate: 1.0,
			MetricsListen:   ":9090",
		},
	}
}

// Load reads a configuration file, overlaying it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid config: field %s failed %q", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Host.KVBackend == hostenv.KVSQLite && c.Host.StorePath == "" {
		return fmt.Errorf("invalid config: sqlite kv backend requires host.storePath")
	}
	return nil
}

// HostConfig converts to the hostenv configuration.
func (c Config) HostEnv() hostenv.Config {
	return hostenv.Config{
		KVBackend:   c.Host.KVBackend,
		StorePath:   c.Host.StorePath,
		HTTPTimeout: time.Duration(c.Host.HTTPTimeoutMS) * time.Millisecond,
		QueueBuffer: c.Host.QueueBuffer,
	}
}

// Telemetry converts to the telemetry configuration.
func (c Config) TelemetryConfig(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	if c.Telemetry.LogLevel != "" {
		tc.Logging.Level = c.Telemetry.LogLevel
	}
	if c.Telemetry.LogFormat != "" {
		tc.Logging.Format = c.Telemetry.LogFormat
	}
	tc.Tracing.Enabled = c.Telemetry.TracingEnabled
	if c.Telemetry.TraceExporter != "" {
		tc.Tracing.Exporter = c.Telemetry.TraceExporter
	}
	tc.Tracing.Endpoint = c.Telemetry.TraceEndpoint
	if c.Telemetry.TraceSampleRate > 0 {
		tc.Tracing.SamplingRate = c.Telemetry.TraceSampleRate
	}
	tc.Metrics.Enabled = c.Telemetry.MetricsEnabled
	if c.Telemetry.MetricsListen != "" {
		tc.Metrics.ListenAddress = c.Telemetry.MetricsListen
	}
	return tc
}
