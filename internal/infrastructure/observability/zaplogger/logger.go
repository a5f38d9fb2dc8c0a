package zaplogger

import (
	"fmt"
	"time"

	"github.com/Zhima-Mochi/winestore/internal/observability"
	"go.uber.org/zap"
)

type logger struct{ l *zap.Logger }

// Wrap adapts a configured zap logger to observability.Logger. fixed fields are bound once.
func Wrap(l *zap.Logger, fixed ...observability.Field) observability.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	if len(fixed) > 0 {
		l = l.With(toZapFields(fixed)...)
	}
	return &logger{l: l}
}

func (z *logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return z
	}
	return &logger{l: z.l.With(toZapFields(fields)...)}
}

func (z *logger) Debug(msg string, fields ...observability.Field) { z.l.Debug(msg, toZapFields(fields)...) }
func (z *logger) Info(msg string, fields ...observability.Field) { z.l.Info(msg, toZapFields(fields)...) }
func (z *logger) Warn(msg string, fields ...observability.Field) { z.l.Warn(msg, toZapFields(fields)...) }
func (z *logger) Error(msg string, fields ...observability.Field) { z.l.Error(msg, toZapFields(fields)...) }

func (z *logger) Sync() error { return z.l.Sync() }

// toZapFields keeps money amounts as integers and durations as seconds so log
// queries can compare them numerically.
func toZapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		switch v := f.Value.(type) {
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		case string:
			out = append(out, zap.String(f.Key, v))
		case int64:
			out = append(out, zap.Int64(f.Key, v))
		case int:
			out = append(out, zap.Int(f.Key, v))
		case time.Duration:
			out = append(out, zap.Float64(f.Key, v.Seconds()))
		case fmt.Stringer:
			out = append(out, zap.Stringer(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}
