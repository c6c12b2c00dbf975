package hostenv

import (
	"github.com/rs/zerolog"

	"github.com/loomworks/loom/pkg/ports"
)

// logPort is the logging binding over zerolog. The declared level
// floors the port; entries below it are dropped.
type logPort struct {
	logger zerolog.Logger
}

func (h *Host) newLog(level string) ports.Log {
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}
	return &logPort{logger: h.logger.Level(lvl)}
}

func (p *logPort) emit(ev *zerolog.Event, msg string, fields map[string]any) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (p *logPort) Debug(msg string, fields map[string]any) {
	p.emit(p.logger.Debug(), msg, fields)
}

func (p *logPort) Info(msg string, fields map[string]any) {
	p.emit(p.logger.Info(), msg, fields)
}

func (p *logPort) Warn(msg string, fields map[string]any) {
	p.emit(p.logger.Warn(), msg, fields)
}

func (p *logPort) Error(msg string, fields map[string]any) {
	p.emit(p.logger.Error(), msg, fields)
}
