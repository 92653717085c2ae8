package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
	// LevelFatal represents the fatal severity level name.
	LevelFatal = "FATAL"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
	"fatal":   LevelFatal,
}

var allowedStatus = map[string]string{
	"ok":      "ok",
	"fail":    "fail",
	"skip":    "skip",
	"retry":   "retry",
	"timeout": "timeout",
}

var allowedReason = map[string]string{
	"window":   "window",
	"bot_down": "bot_down",
	"no_meals": "no_meals",
	"failure":  "failure",
	"crash":    "crash",
}

var allowedKind = map[string]string{
	"success":  "success",
	"failure":  "failure",
	"crash":    "crash",
	"startup":  "startup",
	"window":   "window",
	"bot_down": "bot_down",
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "", false
	}
	if mapped, ok := allowedStatus[status]; ok {
		return mapped, true
	}
	return status, false
}

func normalizeReason(reason string) (string, bool) {
	reason = strings.ToLower(strings.TrimSpace(reason))
	if reason == "" {
		return "", false
	}
	val, ok := allowedReason[reason]
	return val, ok
}

func normalizeKind(kind string) (string, bool) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return "", false
	}
	val, ok := allowedKind[kind]
	return val, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"run_id",
	"attempt",
	"ts_unix_nano",
	"trigger",
	"meal",
	"meals",
	"needed",
	"confirmed",
	"buttons",
	"reason",
	"kind",
	"hour",
	"hours",
	"window_start",
	"window_end",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"command",
	"payload",
	"username",
	"peer",
	"messages",
	"count",
	"limit",
	"mode",
	"path",
	"db",
	"duration_ms",
	"err",
	"err_code",
	"cause",
	"attempts",
	"max_attempts",
	"backoff_ms",
	"truncated",
}
