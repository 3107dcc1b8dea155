// Package flow implements the conversation engine: a registry of named
// multi-step flows and stateless actions, the dispatcher that routes each
// inbound event under the sender's lock, and the courier that delivers the
// resulting effects.
package flow

import (
	"github.com/m3rciful/vpnshop/internal/session"
)

// Trigger names the command or choice that starts a flow or runs an action.
type Trigger struct {
	Kind EventKind
	Name string
	// Description publishes a command trigger in the bot's command menu.
	Description string
}

// OnCommand returns a command trigger.
func OnCommand(name, description string) Trigger {
	return Trigger{Kind: EventCommand, Name: normalizeName(name), Description: description}
}

// OnChoice returns a choice trigger.
func OnChoice(key string) Trigger {
	return Trigger{Kind: EventChoice, Name: key}
}

func (t Trigger) matches(ev Event) bool {
	if t.Kind != ev.Kind {
		return false
	}
	if t.Kind == EventCommand {
		return t.Name == normalizeName(ev.Name)
	}
	return t.Name == ev.Name
}

// Step is one intermediate state of a flow.
type Step struct {
	// Accepts lists the event shapes the step consumes; other shapes re-prompt.
	// An empty list accepts text only.
	Accepts []EventKind
	// Prompt emits the state's prompt. It runs on entry to the state and on re-prompt.
	Prompt func(t *Turn)
	// Handle consumes the event. Without an explicit decision the session ends.
	Handle func(t *Turn) error
}

func (s Step) accepts(kind EventKind) bool {
	if len(s.Accepts) == 0 {
		return kind == EventText
	}
	for _, k := range s.Accepts {
		if k == kind {
			return true
		}
	}
	return false
}

// Flow is a named state graph with a single entry point.
type Flow struct {
	Name      string
	Triggers  []Trigger
	AdminOnly bool
	// Begin checks preconditions. Calling Goto creates the session; returning
	// without a decision leaves the user idle.
	Begin func(t *Turn) error
	Steps map[session.State]Step
}

// Action is a stateless handler. It sees the active session, if any, and
// keeps it unless it calls End.
type Action struct {
	Name      string
	Triggers  []Trigger
	AdminOnly bool
	Run       func(t *Turn) error
}
