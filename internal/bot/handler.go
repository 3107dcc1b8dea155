package bot

import (
	"context"
	"log/slog"
	"strings"

	tg "github.com/m3rciful/vpnshop/core/telegram"
	tghelpers "github.com/m3rciful/vpnshop/core/telegram/helpers"
	"github.com/m3rciful/vpnshop/core/telegram/router"
	"github.com/m3rciful/vpnshop/internal/flow"

	tele "gopkg.in/telebot.v4"
)

const msgSlowDown = "⏳ Slow down a little, please."

// Engine is the part of flow.Engine the transport drives.
type Engine interface {
	Advance(ctx context.Context, ev flow.Event) (flow.Outcome, error)
	Deliver(ctx context.Context, effects []flow.Effect)
}

// Handler feeds updates into the engine.
type Handler struct {
	engine Engine
}

// NewHandler wraps engine.
func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// Handle converts c, advances it under the sender's lock and delivers the
// resulting effects after the lock is released.
func (h *Handler) Handle(c tele.Context) error {
	ev, ok := EventFrom(c)
	if !ok {
		router.Annotate(c, slog.String("route", "ignored"))
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	out, err := h.engine.Advance(ctx, ev)
	attrs := []slog.Attr{
		slog.String("route", string(out.Route)),
		slog.Int("effects", len(out.Effects)),
	}
	if out.Flow != "" {
		attrs = append(attrs, slog.String("flow", out.Flow))
	}
	router.Annotate(c, attrs...)
	h.engine.Deliver(ctx, out.Effects)
	return err
}

// Routes binds every message and callback endpoint to Handle.
func (h *Handler) Routes() []tg.Route {
	routes := router.MessageRoutes(h.Handle)
	return append(routes, router.CallbackRoute(h.Handle))
}

// OnLimited tells a throttled user to slow down.
func OnLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgSlowDown})
	}
	return c.Send(msgSlowDown)
}

// Commands converts registry commands to the telebot menu format, which
// takes names without the leading slash.
func Commands(list []flow.MenuCommand) []tele.Command {
	out := make([]tele.Command, 0, len(list))
	for _, cmd := range list {
		out = append(out, tele.Command{Text: strings.TrimPrefix(cmd.Name, "/"), Description: cmd.Description})
	}
	return out
}
