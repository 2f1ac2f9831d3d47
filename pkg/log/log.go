package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func InitLog(lvl zap.AtomicLevel) *zap.Logger {
	loggerCfg := &zap.Config{
		Level:    lvl,
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "severity",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder, EncodeCaller: zapcore.ShortCallerEncoder},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	plain, err := loggerCfg.Build(zap.AddStacktrace(zap.DPanicLevel))
	if err != nil {
		panic(err)
	}

	return plain
}

// Logger is the structured logging interface consumed by internal/hypervisor.
// Keeping it as an interface (rather than passing *zap.SugaredLogger around
// directly) lets callers plug in any sink that implements these methods.
type Logger interface {
	Debugw(msg string, kv ...any)
	Infow(msg string, kv ...any)
	Warnw(msg string, kv ...any)
	Errorw(msg string, kv ...any)
	Named(name string) Logger
}

type sugaredLogger struct {
	s *zap.SugaredLogger
}

// NewSugaredLogger adapts a *zap.Logger to the Logger interface.
func NewSugaredLogger(l *zap.Logger) Logger {
	return &sugaredLogger{s: l.Sugar()}
}

func (l *sugaredLogger) Debugw(msg string, kv ...any)   { l.s.Debugw(msg, kv...) }
func (l *sugaredLogger) Infow(msg string, kv ...any)    { l.s.Infow(msg, kv...) }
func (l *sugaredLogger) Warnw(msg string, kv ...any)    { l.s.Warnw(msg, kv...) }
func (l *sugaredLogger) Errorw(msg string, kv ...any)   { l.s.Errorw(msg, kv...) }
func (l *sugaredLogger) Named(name string) Logger {
	return &sugaredLogger{s: l.s.Named(name)}
}
