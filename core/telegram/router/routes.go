// Package router binds update endpoints to a single handler and logs one
// summary line per handled update.
package router

import (
	"log/slog"
	"strings"

	tg "github.com/m3rciful/vpnshop/core/telegram"
	"github.com/m3rciful/vpnshop/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute acknowledges every button press and hands it to h.
func CallbackRoute(h tele.HandlerFunc) tg.Route {
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler: func(c tele.Context) error {
			if c.Callback() == nil {
				return nil
			}
			key, _ := callbacks.ParseCallbackData(c.Callback())
			_ = c.Respond()
			return handleWithSummary(c, "callback."+normalizeHandlerName(key), h, slog.String("cb_key", key))
		},
	}
}

// MessageRoutes binds text, document and photo messages to h. Unregistered
// slash commands arrive as text.
func MessageRoutes(h tele.HandlerFunc) []tg.Route {
	text := func(c tele.Context) error {
		name := "text"
		if body := strings.TrimSpace(c.Text()); strings.HasPrefix(body, "/") {
			name = "command." + normalizeHandlerName(body)
		}
		return handleWithSummary(c, name, h)
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: text},
		{Endpoint: tele.OnDocument, Handler: func(c tele.Context) error {
			return handleWithSummary(c, "document", h)
		}},
		{Endpoint: tele.OnPhoto, Handler: func(c tele.Context) error {
			return handleWithSummary(c, "photo", h)
		}},
	}
}
