package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/vpnshop/core/logger"
	tghelpers "github.com/m3rciful/vpnshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const annotationsKey = "summary_attrs"

// Annotate attaches attributes to the handler summary line of the current update.
func Annotate(c tele.Context, attrs ...slog.Attr) {
	if c == nil || len(attrs) == 0 {
		return
	}
	prev, _ := c.Get(annotationsKey).([]slog.Attr)
	c.Set(annotationsKey, append(prev, attrs...))
}

func handleWithSummary(c tele.Context, handlerName string, fn tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	tghelpers.WithHandler(c, handlerName)
	err := fn(c)
	logHandlerSummary(c, handlerName, start, err, extras...)
	return err
}

func logHandlerSummary(c tele.Context, handlerName string, start time.Time, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("handler", handlerName),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	if noted, ok := c.Get(annotationsKey).([]slog.Attr); ok {
		attrs = append(attrs, noted...)
	}
	if err != nil {
		logger.Error(ctx, "tg", "handler.handled", attrs...)
		return
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	if i := strings.IndexAny(name, " @"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	if inner := errors.Unwrap(err); inner != nil {
		err = inner
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
