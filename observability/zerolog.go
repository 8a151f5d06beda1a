package observability

import "github.com/rs/zerolog"

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

func (z *ZerologLogger) Debug(msg string, fields ...Field) { emit(z.log.Debug(), msg, fields) }
func (z *ZerologLogger) Info(msg string, fields ...Field)  { emit(z.log.Info(), msg, fields) }
func (z *ZerologLogger) Warn(msg string, fields ...Field)  { emit(z.log.Warn(), msg, fields) }
func (z *ZerologLogger) Error(msg string, fields ...Field) { emit(z.log.Error(), msg, fields) }

func (z *ZerologLogger) With(fields ...Field) Logger {
	ctx := z.log.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key(), f.Value())
	}
	return &ZerologLogger{log: ctx.Logger()}
}

func emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			ev = ev.Str(f.Key(), v)
		case int:
			ev = ev.Int(f.Key(), v)
		case int64:
			ev = ev.Int64(f.Key(), v)
		case float64:
			ev = ev.Float64(f.Key(), v)
		case error:
			ev = ev.AnErr(f.Key(), v)
		default:
			ev = ev.Interface(f.Key(), v)
		}
	}
	ev.Msg(msg)
}
