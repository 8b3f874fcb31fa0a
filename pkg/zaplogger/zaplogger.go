package zaplogger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLevel уровень, если он не задан.
const DefaultLevel = "info"

// New создает JSON-логгер в stdout с временем в ISO8601 и коротким caller.
// level принимает значения zapcore ("debug", "info", "warn", "error"); пустая строка - DefaultLevel.
func New(level string) (*zap.Logger, error) {
	config, err := Config(level)
	if err != nil {
		return nil, err
	}
	return config.Build(zap.AddCallerSkip(1))
}

// Config конфигурация логгера без сборки; используется и в тестах.
func Config(level string) (zap.Config, error) {
	if level == "" {
		level = DefaultLevel
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("parse log level %q: %w", level, err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.Encoding = "json"
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	return config, nil
}
