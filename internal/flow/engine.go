package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/vpnshop/core/logger"
	"github.com/m3rciful/vpnshop/core/metrics"
	"github.com/m3rciful/vpnshop/internal/bridge"
	"github.com/m3rciful/vpnshop/internal/ledger"
	"github.com/m3rciful/vpnshop/internal/session"
)

const restartCommand = "start"

// Route names the dispatcher branch an event took.
type Route string

const (
	RouteRestart  Route = "restart"
	RouteEntry    Route = "entry"
	RouteAction   Route = "action"
	RouteStep     Route = "step"
	RouteReprompt Route = "reprompt"
	RouteStay     Route = "stay"
	RouteComplete Route = "complete"
	RouteRejected Route = "rejected"
	RouteFallback Route = "fallback"
	RouteError    Route = "error"
)

// Outcome is the result of advancing one event.
type Outcome struct {
	Route Route
	Flow  string
	// Session is the user's session after the event, nil when idle.
	Session *session.Session
	Effects []Effect
}

// Options wires an Engine. Store, Registry, Messenger and AdminID are required.
type Options struct {
	Store     ledger.Store
	Sessions  *session.Table
	Bridge    bridge.Registry
	Registry  *Registry
	Messenger Messenger
	AdminID   int64
	Catalog   Catalog
	// BroadcastWorkers bounds broadcast fan-out concurrency.
	BroadcastWorkers int
}

// Engine is the session state machine and dispatcher.
type Engine struct {
	store    ledger.Store
	sessions *session.Table
	bridge   bridge.Registry
	registry *Registry
	adminID  int64
	catalog  Catalog
	courier  *Courier
}

// NewEngine validates opts and constructs an Engine.
func NewEngine(opts Options) (*Engine, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("flow: store is required")
	case opts.Registry == nil:
		return nil, errors.New("flow: registry is required")
	case opts.Messenger == nil:
		return nil, errors.New("flow: messenger is required")
	case opts.AdminID == 0:
		return nil, errors.New("flow: admin id is required")
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewTable(nil)
	}
	if opts.Bridge == nil {
		opts.Bridge = bridge.NewMemoryRegistry()
	}
	opts.Catalog.Normalize()
	return &Engine{
		store:    opts.Store,
		sessions: opts.Sessions,
		bridge:   opts.Bridge,
		registry: opts.Registry,
		adminID:  opts.AdminID,
		catalog:  opts.Catalog,
		courier:  NewCourier(opts.Messenger, opts.Bridge, opts.BroadcastWorkers),
	}, nil
}

// Registry returns the flow registry the engine dispatches against.
func (e *Engine) Registry() *Registry { return e.registry }

// Handle advances ev and delivers the resulting effects once the user's lock
// is released. Delivery failures are logged by the courier and never returned.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	out, err := e.Advance(ctx, ev)
	e.Deliver(ctx, out.Effects)
	return err
}

// Deliver executes effects in order. Callers must not hold the sender's lock.
func (e *Engine) Deliver(ctx context.Context, effects []Effect) {
	e.courier.Deliver(ctx, effects)
}

// Advance routes ev under the sender's lock and returns the queued effects
// without delivering them. The error is non-nil only for unexpected store
// failures; the outcome then carries a generic failure reply.
func (e *Engine) Advance(ctx context.Context, ev Event) (Outcome, error) {
	start := time.Now()
	unlock := e.sessions.Lock(ev.Sender)
	out, err := e.advance(ctx, ev)
	unlock()

	flowName := out.Flow
	if flowName == "" {
		flowName = "-"
	}
	metrics.FlowRoutes.WithLabelValues(flowName, string(out.Route)).Inc()
	attrs := []slog.Attr{
		slog.Int64("user_id", ev.Sender),
		slog.String("kind", ev.Kind.String()),
		slog.String("route", string(out.Route)),
		slog.String("flow", out.Flow),
		slog.Int("effects", len(out.Effects)),
		slog.Duration("duration", logger.Took(start)),
	}
	if out.Session != nil {
		attrs = append(attrs, slog.String("state", string(out.Session.State)))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Error(ctx, "flow", "flow.advance", attrs...)
	} else {
		logger.Debug(ctx, "flow", "flow.advance", attrs...)
	}
	return out, err
}

func (e *Engine) advance(ctx context.Context, ev Event) (Outcome, error) {
	user, err := e.store.EnsureUser(ctx, ev.Sender, ev.Handle)
	if err != nil {
		return e.failure(ctx, ev.Sender, "", fmt.Errorf("ensure user: %w", err))
	}
	active, _, err := e.sessions.Get(ctx, ev.Sender)
	if err != nil {
		return e.failure(ctx, ev.Sender, "", fmt.Errorf("load session: %w", err))
	}

	t := &Turn{ctx: ctx, engine: e, Event: ev, User: user}

	restart := ev.IsCommand(restartCommand)
	if restart && active != nil {
		e.cancel(ctx, ev.Sender, active, "restart")
		active = nil
	}

	if f, ok := e.registry.Entry(ev); ok {
		return e.enter(t, f, active)
	}
	if a, ok := e.registry.Action(ev); ok {
		out, err := e.act(t, a, active)
		if restart && out.Route == RouteAction {
			out.Route = RouteRestart
		}
		return out, err
	}
	if active != nil {
		return e.step(t, active)
	}
	return e.fallback(t), nil
}

func (e *Engine) enter(t *Turn, f *Flow, active *session.Session) (Outcome, error) {
	ctx := t.ctx
	if f.AdminOnly && !t.IsAdmin() {
		t.Reply(msgAdminOnly)
		return Outcome{Route: RouteRejected, Flow: f.Name, Session: active, Effects: t.effects}, nil
	}
	if active != nil {
		e.cancel(ctx, t.Event.Sender, active, "new_entry")
	}

	t.Session = session.New(f.Name, session.StateIdle)
	if err := f.Begin(t); err != nil {
		return e.failure(ctx, t.Event.Sender, f.Name, fmt.Errorf("%s begin: %w", f.Name, err))
	}
	if t.decision != decideGoto {
		return Outcome{Route: RouteEntry, Flow: f.Name, Effects: t.effects}, nil
	}
	return e.advanceTo(t, f, RouteEntry)
}

func (e *Engine) act(t *Turn, a *Action, active *session.Session) (Outcome, error) {
	flowName := ""
	if active != nil {
		flowName = active.Flow
	}
	if a.AdminOnly && !t.IsAdmin() {
		t.Reply(msgAdminOnly)
		return Outcome{Route: RouteRejected, Flow: flowName, Session: active, Effects: t.effects}, nil
	}
	t.Session = active
	if err := a.Run(t); err != nil {
		return e.failure(t.ctx, t.Event.Sender, flowName, fmt.Errorf("%s: %w", a.Name, err))
	}
	if t.decision == decideEnd && active != nil {
		if err := e.sessions.Clear(t.ctx, t.Event.Sender); err != nil {
			return e.failure(t.ctx, t.Event.Sender, flowName, err)
		}
		active = nil
	}
	return Outcome{Route: RouteAction, Flow: flowName, Session: active, Effects: t.effects}, nil
}

func (e *Engine) step(t *Turn, active *session.Session) (Outcome, error) {
	ctx := t.ctx
	f, ok := e.registry.Flow(active.Flow)
	var st Step
	if ok {
		st, ok = f.Steps[active.State]
	}
	if !ok {
		logger.Warn(ctx, "flow", "session.orphan",
			slog.Int64("user_id", t.Event.Sender),
			slog.String("flow", active.Flow),
			slog.String("state", string(active.State)),
		)
		if err := e.sessions.Clear(ctx, t.Event.Sender); err != nil {
			return e.failure(ctx, t.Event.Sender, active.Flow, err)
		}
		return e.fallback(t), nil
	}

	t.Session = active
	if !st.accepts(t.Event.Kind) {
		st.Prompt(t)
		return Outcome{Route: RouteReprompt, Flow: f.Name, Session: active, Effects: t.effects}, nil
	}
	if err := st.Handle(t); err != nil {
		return e.failure(ctx, t.Event.Sender, f.Name, fmt.Errorf("%s/%s: %w", f.Name, active.State, err))
	}

	switch t.decision {
	case decideGoto:
		return e.advanceTo(t, f, RouteStep)
	case decideStay:
		route := RouteStay
		if t.reprompt {
			st.Prompt(t)
			route = RouteReprompt
		}
		if err := e.sessions.Save(ctx, t.Event.Sender, t.Session); err != nil {
			return e.failure(ctx, t.Event.Sender, f.Name, err)
		}
		return Outcome{Route: route, Flow: f.Name, Session: t.Session, Effects: t.effects}, nil
	default:
		if err := e.sessions.Clear(ctx, t.Event.Sender); err != nil {
			return e.failure(ctx, t.Event.Sender, f.Name, err)
		}
		logger.Info(ctx, "flow", "flow.complete",
			slog.Int64("user_id", t.Event.Sender),
			slog.String("flow", f.Name),
			slog.String("state", string(active.State)),
		)
		return Outcome{Route: RouteComplete, Flow: f.Name, Effects: t.effects}, nil
	}
}

func (e *Engine) advanceTo(t *Turn, f *Flow, route Route) (Outcome, error) {
	next, ok := f.Steps[t.next]
	if !ok {
		return e.failure(t.ctx, t.Event.Sender, f.Name, fmt.Errorf("flow %s has no state %q", f.Name, t.next))
	}
	t.Session.State = t.next
	next.Prompt(t)
	if err := e.sessions.Save(t.ctx, t.Event.Sender, t.Session); err != nil {
		return e.failure(t.ctx, t.Event.Sender, f.Name, err)
	}
	return Outcome{Route: route, Flow: f.Name, Session: t.Session, Effects: t.effects}, nil
}

func (e *Engine) fallback(t *Turn) Outcome {
	if t.Event.Kind == EventChoice {
		t.Reply(msgStaleChoice)
	} else {
		t.Reply(msgFallback)
	}
	return Outcome{Route: RouteFallback, Effects: t.effects}
}

func (e *Engine) cancel(ctx context.Context, userID int64, active *session.Session, reason string) {
	if err := e.sessions.Clear(ctx, userID); err != nil {
		logger.Warn(ctx, "flow", "session.cancel",
			slog.Int64("user_id", userID),
			slog.String("flow", active.Flow),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, "flow", "session.cancel",
		slog.Int64("user_id", userID),
		slog.String("flow", active.Flow),
		slog.String("state", string(active.State)),
		slog.String("cause", reason),
	)
}

// failure clears the session best-effort and replaces queued effects with a
// generic failure reply.
func (e *Engine) failure(ctx context.Context, userID int64, flowName string, err error) (Outcome, error) {
	if clearErr := e.sessions.Clear(ctx, userID); clearErr != nil {
		logger.Warn(ctx, "flow", "session.clear",
			slog.Int64("user_id", userID),
			slog.String("err", clearErr.Error()),
		)
	}
	return Outcome{
		Route:   RouteError,
		Flow:    flowName,
		Effects: []Effect{{Kind: EffectText, To: userID, Text: msgInternalError}},
	}, err
}
