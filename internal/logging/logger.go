package logging

import (
	"log/slog"
	"os"
)

var Logger *slog.Logger

var level = new(slog.LevelVar) // dynamic level if we ever want to adjust it

func Init() {
	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		level.Set(slog.LevelDebug)
	}
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func init() {
	Init()
}

// Shortcut helpers
func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger.Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger.Warn(msg, args...) }
func Error(msg string, args ...any) { Logger.Error(msg, args...) }

// Fatal logs at error level and exits with status 1.
func Fatal(msg string, args ...any) {
	Logger.Error(msg, args...)
	os.Exit(1)
}

// Fault logs at error level and exits with status 255, the status reserved
// for an unreachable or unidentified instrument at startup.
func Fault(msg string, args ...any) {
	Logger.Error(msg, args...)
	os.Exit(255)
}
