package logging

import (
	"io"
	"os"

	"github.com/gofiber/fiber/v2/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ManuelReschke/PropSync/internal/pkg/config"
)

// Setup configures the global fiber logger. When a log file is configured,
// output is written to stdout and to a rotated file.
func Setup(cfg config.LogConfig) io.Writer {
	var writer io.Writer = os.Stdout
	if cfg.File != "" {
		writer = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20, // Megabytes
			MaxBackups: 5,
			MaxAge:     28, // Days
			Compress:   true,
		})
	}

	log.SetOutput(writer)
	log.SetLevel(ParseLevel(cfg.Level))
	return writer
}

// ParseLevel maps LOG_LEVEL values to fiber log levels, defaulting to info.
func ParseLevel(level string) log.Level {
	switch level {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
