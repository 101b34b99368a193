package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/namimod25/toko-online/internal/infrastructure/env"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	appName     = "toko-online"
	logFileName = "toko-online.log"
)

type Logger interface {
	Init()

	Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Debugf(template string, args ...any)

	Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Infof(template string, args ...any)

	Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Warnf(template string, args ...any)

	Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Errorf(template string, args ...any)

	Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Fatalf(template string, args ...any)

	Sync() error
}

type LoggerConfig struct {
	FilePath string
	Encoding string
	Level    string
	Logger   string
}

func NewDefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		FilePath: env.GetString("LOGGER_FILE_PATH", ""),
		Encoding: env.GetString("LOGGER_ENCODING", "json"),
		Level:    env.GetString("LOGGER_LEVEL", "info"),
		Logger:   env.GetString("LOGGER_LOGGER", "zap"),
	}
}

func NewLogger(cfg *LoggerConfig) (Logger, error) {
	switch cfg.Logger {
	case "zap", "":
		return newZapLogger(cfg), nil
	case "zerolog":
		return newZeroLogger(cfg), nil
	}

	return nil, fmt.Errorf("logger not supported: %q (supported loggers: [zap, zerolog])", cfg.Logger)
}

// output writes to a rotated file under FilePath, or stdout when FilePath is empty.
func (cfg *LoggerConfig) output() io.Writer {
	if cfg.FilePath == "" {
		return os.Stdout
	}

	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.FilePath, logFileName),
		MaxSize:    10,
		MaxAge:     20,
		MaxBackups: 5,
		LocalTime:  true,
		Compress:   true,
	}
}
