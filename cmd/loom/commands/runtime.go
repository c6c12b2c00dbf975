package commands

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/hostenv"
	"github.com/loomworks/loom/pkg/macros"
	"github.com/loomworks/loom/pkg/telemetry"
)

// runtime bundles the long-lived pieces a command needs: configuration,
// telemetry, the host environment, and the engine.
type runtime struct {
	cfg     config.Config
	logger  zerolog.Logger
	tracer  *telemetry.Tracer
	metrics *telemetry.Metrics
	host    *hostenv.Host
	engine  *engine.Engine
}

// newRuntime loads configuration and assembles the runtime. Flags
// refine the configuration: --verbose lowers the log level to debug,
// --json forces JSON log output.
func newRuntime(ctx context.Context, version string) (*runtime, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}
	if jsonOutput {
		cfg.Telemetry.LogFormat = "json"
	}

	tcfg := cfg.TelemetryConfig(version)
	if err := tcfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := telemetry.NewLogger(tcfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := telemetry.NewTracer(tcfg.Tracing, tcfg.ServiceName, tcfg.ServiceVersion, tcfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := telemetry.NewMetrics(tcfg.Metrics)
	if err != nil {
		return nil, err
	}
	if err := metrics.StartMetricsServer(); err != nil {
		return nil, err
	}

	host, err := hostenv.New(ctx, cfg.HostEnv(), telemetry.ComponentLogger(logger, "hostenv"))
	if err != nil {
		return nil, err
	}

	eng := engine.New(
		macros.DefaultRegistry(metrics),
		host.Env(),
		engine.Options{
			StrictValidate: cfg.Engine.StrictValidate,
			Logger:         telemetry.ComponentLogger(logger, "engine"),
			Tracer:         tracer,
			Metrics:        metrics,
		},
	)

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
		host:    host,
		engine:  eng,
	}, nil
}

// close releases the runtime's resources.
func (r *runtime) close(ctx context.Context) {
	if err := r.tracer.Shutdown(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("tracer shutdown failed")
	}
	if err := r.host.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("host shutdown failed")
	}
}
