package loggers

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewZap() (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig = encoderConfig
	logConfig.DisableStacktrace = true

	level := zapcore.InfoLevel
	logConfig.Level.SetLevel(level)

	return logConfig.Build()
}
