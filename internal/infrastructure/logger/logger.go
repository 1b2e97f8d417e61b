package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction.
type Config struct {
	Level    string // debug, info, warn, error
	FilePath string // rotating log file; "" disables the file sink
}

// Rotation limits for the app log file.
const (
	maxSizeMB  = 5
	maxBackups = 3
)

// New builds the process logger: JSON to stdout plus a rotating file sink.
// The lumberjack writer serializes appends, so concurrent request handlers
// can share the one logger safely.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	}
	if cfg.FilePath != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotating), level))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
