package storefront

import "go.uber.org/zap"

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger to Logger.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return zapLogger{sugar: l.Sugar()}
}

func (z zapLogger) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }
func (z zapLogger) Info(msg string, args ...any)  { z.sugar.Infow(msg, args...) }
func (z zapLogger) Warn(msg string, args ...any)  { z.sugar.Warnw(msg, args...) }
func (z zapLogger) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

// NopLogger discards everything.
func NopLogger() Logger {
	return NewZapLogger(zap.NewNop())
}

// NormalizeLogger returns a nop logger for nil.
func NormalizeLogger(l Logger) Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}

// NewLogger builds a zap backed Logger. Development loggers are human
// readable and log at debug level.
func NewLogger(level string, development bool) (Logger, *zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, nil, err
		}
		cfg.Level = lvl
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return NewZapLogger(l), l, nil
}
