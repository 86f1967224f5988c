package util

import (
	"fmt"
	"os"
	"time"
)

// LogLevel orders message severities.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLogLevel = LevelInfo
	useColors       = IsTerminal(os.Stderr.Fd())
)

// SetVerbose lowers the threshold to debug.
func SetVerbose(verbose bool) {
	if verbose {
		currentLogLevel = LevelDebug
	}
}

// SetQuiet raises the threshold so only errors print.
func SetQuiet(quiet bool) {
	if quiet {
		currentLogLevel = LevelError
	}
}

// IsQuiet reports whether only errors are being printed.
func IsQuiet() bool {
	return currentLogLevel >= LevelError
}

// SetColors overrides the automatic terminal detection.
func SetColors(enabled bool) {
	useColors = enabled
}

const (
	ansiGray   = "\033[90m"
	ansiCyan   = "\033[36m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiReset  = "\033[0m"
)

// emit writes one line to stderr: colored timestamp, fixed-width tag, message.
func emit(level LogLevel, color, tag, format string, args []any) {
	if currentLogLevel > level {
		return
	}
	stamp := time.Now().Format("15:04:05")
	if useColors {
		stamp = color + stamp + ansiReset
	}
	fmt.Fprintf(os.Stderr, "%s %-7s %s\n", stamp, tag, fmt.Sprintf(format, args...))
}

// DebugLog prints diagnostic detail, visible only with -v.
func DebugLog(format string, args ...any) {
	emit(LevelDebug, ansiGray, "[DEBUG]", format, args)
}

// InfoLog prints routine progress.
func InfoLog(format string, args ...any) {
	emit(LevelInfo, ansiCyan, "[INFO]", format, args)
}

// WarnLog prints recoverable problems.
func WarnLog(format string, args ...any) {
	emit(LevelWarn, ansiYellow, "[WARN]", format, args)
}

// ErrorLog prints failures; shown even in quiet mode.
func ErrorLog(format string, args ...any) {
	emit(LevelError, ansiRed, "[ERROR]", format, args)
}

// SuccessLog prints completed-operation summaries.
func SuccessLog(format string, args ...any) {
	emit(LevelInfo, ansiGreen, "[OK]", format, args)
}
