package logger

import (
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLog renders every Msg through a *zap.Logger instead of to stderr
// text. Used by the orchestrator's per-phase instrumentation and by
// cmd/bundle, which wants structured fields (plugin name, file/line/column)
// rather than the teacher's clang-style terminal output.
func NewZapLog(zl *zap.Logger, buildID string) Log {
	var mutex sync.Mutex
	var msgs msgsArray
	var hasErrors bool

	zl = zl.With(zap.String("build_id", buildID))

	return Log{
		AddMsg: func(msg Msg) {
			mutex.Lock()
			msgs = append(msgs, msg)
			if msg.Kind == Error {
				hasErrors = true
			}
			mutex.Unlock()

			fields := []zap.Field{zap.String("id", msg.ID.String())}
			if msg.PluginName != "" {
				fields = append(fields, zap.String("plugin", msg.PluginName))
			}
			if loc := msg.Location; loc != nil {
				fields = append(fields,
					zap.String("file", loc.File),
					zap.Int("line", loc.Line),
					zap.Int("column", loc.Column),
				)
			}

			switch msg.Kind {
			case Error:
				zl.Error(msg.Text, fields...)
			case Warning:
				zl.Warn(msg.Text, fields...)
			}
		},
		HasErrors: func() bool {
			mutex.Lock()
			defer mutex.Unlock()
			return hasErrors
		},
		Done: func() []Msg {
			mutex.Lock()
			defer mutex.Unlock()
			sort.Stable(msgs)
			return msgs
		},
	}
}

// DefaultZapLogger returns a production zap logger configured for console
// output, the way a small CLI driver in this pack would build one.
func DefaultZapLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
