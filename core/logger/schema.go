package logger

import (
	"log/slog"
	"strings"
)

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaultKeyOrder puts correlation first, then the flow outcome, then
// infrastructure detail and errors. Unlisted keys follow in lexical order.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",

	"flow",
	"state",
	"route",
	"action",
	"kind",
	"target_id",
	"amount",
	"effects",
	"sent",
	"failed",
	"pending_count",
	"count",
	"reason",

	"cb_key",
	"payload",
	"username",
	"duration_ms",
	"elapsed_ms",

	"mode",
	"listen",
	"public_url",
	"timeout_seconds",
	"driver",
	"db",
	"host",
	"port",
	"pool_open",
	"from_ver",
	"to_ver",
	"files",

	"err",
	"err_code",
	"cause",
	"stack",
}

func parseKeyOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}
