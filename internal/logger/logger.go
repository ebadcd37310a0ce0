// Package logger wraps the shared charmbracelet logger used across softbright
package logger

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var Logger *log.Logger

// baseLevel is the level selected by LOG_LEVEL or --verbose; SetDebug toggles between it and debug.
var baseLevel log.Level

func init() {
	Logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "softbright",
		ReportTimestamp: true,
	})

	// Set log level from environment variable
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		baseLevel = log.DebugLevel
	case "WARN", "WARNING":
		baseLevel = log.WarnLevel
	case "ERROR":
		baseLevel = log.ErrorLevel
	case "FATAL":
		baseLevel = log.FatalLevel
	default:
		// Default to INFO level if not specified or invalid
		baseLevel = log.InfoLevel
	}
	Logger.SetLevel(baseLevel)
}

// SetVerbose lowers the base level to debug, so the "debug" setting can only
// add verbosity on top of it. It backs the --verbose flag.
func SetVerbose(verbose bool) {
	if verbose {
		baseLevel = log.DebugLevel
	}
	Logger.SetLevel(min(Logger.GetLevel(), baseLevel))
}

// SetDebug switches verbose logging on or off. It backs the "debug" setting.
func SetDebug(debug bool) {
	if debug {
		Logger.SetLevel(log.DebugLevel)
		return
	}
	Logger.SetLevel(baseLevel)
}

// IsDebug reports whether debug messages are currently emitted.
func IsDebug() bool {
	return Logger.GetLevel() <= log.DebugLevel
}

// Convenience functions for common operations
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	Logger.Errorf(format, args...)
}
