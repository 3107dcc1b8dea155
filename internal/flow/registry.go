package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/m3rciful/vpnshop/core/logger"
)

// MenuCommand is a published bot command.
type MenuCommand struct {
	Name        string
	Description string
}

type triggerKey struct {
	kind EventKind
	name string
}

// Registry is the static table of flows and stateless actions.
type Registry struct {
	flows   map[string]*Flow
	actions map[string]*Action
	entries map[triggerKey]*Flow
	handles map[triggerKey]*Action
	menu    []menuEntry
}

type menuEntry struct {
	cmd       MenuCommand
	adminOnly bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		flows:   make(map[string]*Flow),
		actions: make(map[string]*Action),
		entries: make(map[triggerKey]*Flow),
		handles: make(map[triggerKey]*Action),
	}
}

// RegisterFlow adds a flow. Invalid definitions and trigger collisions are
// logged and rejected.
func (r *Registry) RegisterFlow(f Flow) error {
	if f.Name == "" || f.Begin == nil || len(f.Triggers) == 0 {
		logger.Warn(context.Background(), "tg.wire", "register.flow.skip",
			slog.String("flow", f.Name),
			slog.String("reason", "invalid"),
		)
		return errors.New("invalid flow registration")
	}
	for st, step := range f.Steps {
		if step.Handle == nil || step.Prompt == nil {
			logger.Warn(context.Background(), "tg.wire", "register.flow.skip",
				slog.String("flow", f.Name),
				slog.String("state", string(st)),
				slog.String("reason", "incomplete_step"),
			)
			return fmt.Errorf("flow %s: step %s lacks prompt or handler", f.Name, st)
		}
	}
	if _, exists := r.flows[f.Name]; exists {
		logger.Warn(context.Background(), "tg.wire", "register.flow.duplicate",
			slog.String("flow", f.Name),
		)
		return fmt.Errorf("flow already registered: %s", f.Name)
	}
	if err := r.claim(f.Name, f.Triggers); err != nil {
		return err
	}
	flow := f
	r.flows[f.Name] = &flow
	for _, tr := range f.Triggers {
		r.entries[triggerKey{tr.Kind, tr.Name}] = &flow
	}
	r.publish(f.Triggers, f.AdminOnly)
	return nil
}

// RegisterAction adds a stateless action.
func (r *Registry) RegisterAction(a Action) error {
	if a.Name == "" || a.Run == nil || len(a.Triggers) == 0 {
		logger.Warn(context.Background(), "tg.wire", "register.action.skip",
			slog.String("handler", a.Name),
			slog.String("reason", "invalid"),
		)
		return errors.New("invalid action registration")
	}
	if _, exists := r.actions[a.Name]; exists {
		logger.Warn(context.Background(), "tg.wire", "register.action.duplicate",
			slog.String("handler", a.Name),
		)
		return fmt.Errorf("action already registered: %s", a.Name)
	}
	if err := r.claim(a.Name, a.Triggers); err != nil {
		return err
	}
	action := a
	r.actions[a.Name] = &action
	for _, tr := range a.Triggers {
		r.handles[triggerKey{tr.Kind, tr.Name}] = &action
	}
	r.publish(a.Triggers, a.AdminOnly)
	return nil
}

func (r *Registry) claim(owner string, triggers []Trigger) error {
	for _, tr := range triggers {
		key := triggerKey{tr.Kind, tr.Name}
		_, flowTaken := r.entries[key]
		_, actionTaken := r.handles[key]
		if flowTaken || actionTaken || tr.Name == "" {
			logger.Warn(context.Background(), "tg.wire", "register.trigger.duplicate",
				slog.String("handler", owner),
				slog.String("kind", tr.Kind.String()),
				slog.String("name", tr.Name),
			)
			return fmt.Errorf("%s: trigger %s %q already registered", owner, tr.Kind, tr.Name)
		}
	}
	return nil
}

func (r *Registry) publish(triggers []Trigger, adminOnly bool) {
	for _, tr := range triggers {
		if tr.Kind != EventCommand || tr.Description == "" {
			continue
		}
		r.menu = append(r.menu, menuEntry{
			cmd:       MenuCommand{Name: "/" + tr.Name, Description: tr.Description},
			adminOnly: adminOnly,
		})
	}
}

// Flow returns a flow by name.
func (r *Registry) Flow(name string) (*Flow, bool) {
	f, ok := r.flows[name]
	return f, ok
}

// Entry returns the flow whose entry point matches ev.
func (r *Registry) Entry(ev Event) (*Flow, bool) {
	if ev.Kind != EventCommand && ev.Kind != EventChoice {
		return nil, false
	}
	f, ok := r.entries[triggerKey{ev.Kind, keyName(ev)}]
	return f, ok
}

// Action returns the stateless action matching ev.
func (r *Registry) Action(ev Event) (*Action, bool) {
	if ev.Kind != EventCommand && ev.Kind != EventChoice {
		return nil, false
	}
	a, ok := r.handles[triggerKey{ev.Kind, keyName(ev)}]
	return a, ok
}

// Commands returns published commands sorted by name. Admin-only commands are
// included only when withAdmin is set.
func (r *Registry) Commands(withAdmin bool) []MenuCommand {
	var list []MenuCommand
	for _, m := range r.menu {
		if m.adminOnly && !withAdmin {
			continue
		}
		list = append(list, m.cmd)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// FlowNames returns the registered flow names sorted (for diagnostics).
func (r *Registry) FlowNames() []string {
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func keyName(ev Event) string {
	if ev.Kind == EventCommand {
		return normalizeName(ev.Name)
	}
	return ev.Name
}
