package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lucabaldini/baldaquin/sync/once"
)

// zapOutputter adapts a zap.Logger to the Outputter interface, so that a
// run-scoped log file can be swapped in as the package-level destination for
// the duration of a single acquisition run (see runctrl.FSM).
type zapOutputter struct {
	level     Level
	core      *zap.Logger
	closer    func() error
	closeTask once.Task
}

var levelToZap = map[Level]zapcore.Level{
	Debug: zapcore.DebugLevel,
	Info:  zapcore.InfoLevel,
	Error: zapcore.ErrorLevel,
}

// NewFileOutputter builds an Outputter that writes structured log lines to
// the file at path, appending to it or creating it as needed. The returned
// Outputter must be closed (via its Close method) once the run ends; Close
// flushes any buffered log lines and releases the underlying file.
func NewFileOutputter(path string, level Level) (*FileOutputter, error) {
	return NewFileOutputterWithFields(path, level, nil)
}

// NewFileOutputterWithFields is NewFileOutputter with a set of static
// key/value fields attached to every line the outputter writes, e.g. a
// per-run correlation id that should appear on every log line for that
// run rather than once in a banner line.
func NewFileOutputterWithFields(path string, level Level, fields map[string]string) (*FileOutputter, error) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.TimeKey = "ts"
	encoder := zapcore.NewConsoleEncoder(cfg)

	ws, closer, err := zap.Open(path)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(encoder, ws, levelToZap[clamp(level)])
	logger := zap.New(core)
	if len(fields) > 0 {
		zf := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zf = append(zf, zap.String(k, v))
		}
		logger = logger.With(zf...)
	}
	return &FileOutputter{
		zapOutputter: zapOutputter{level: level, core: logger, closer: func() error { closer(); return nil }},
	}, nil
}

func clamp(l Level) Level {
	if l > Debug {
		return Debug
	}
	if l < Error {
		return Error
	}
	return l
}

// FileOutputter is the concrete Outputter returned by NewFileOutputter.
type FileOutputter struct {
	zapOutputter
}

// Level implements Outputter.
func (z *zapOutputter) Level() Level { return z.level }

// Output implements Outputter.
func (z *zapOutputter) Output(calldepth int, level Level, s string) error {
	if level > z.level {
		return nil
	}
	switch {
	case level <= Error:
		z.core.Error(s)
	case level == Info:
		z.core.Info(s)
	default:
		z.core.Debug(s)
	}
	return nil
}

// Close flushes and releases the underlying log file. It is idempotent:
// calls after the first return the first call's result without releasing
// the file handle again.
func (z *FileOutputter) Close() error {
	return z.closeTask.Do(func() error {
		_ = z.core.Sync()
		return z.closer()
	})
}
