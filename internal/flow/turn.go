package flow

import (
	"context"
	"strings"

	"github.com/m3rciful/vpnshop/internal/bridge"
	"github.com/m3rciful/vpnshop/internal/ledger"
	"github.com/m3rciful/vpnshop/internal/session"
)

type decision int

const (
	decideNone decision = iota
	decideGoto
	decideStay
	decideEnd
)

// Turn is the handler-facing view of one event being processed. Handlers
// queue effects and record a decision; the engine applies both.
type Turn struct {
	ctx    context.Context
	engine *Engine

	Event Event
	User  ledger.User
	// Session is the session the handler operates on. For actions it is the
	// user's active session or nil.
	Session *session.Session

	effects  []Effect
	decision decision
	next     session.State
	reprompt bool
}

// Context returns the request context.
func (t *Turn) Context() context.Context { return t.ctx }

// Store returns the ledger store.
func (t *Turn) Store() ledger.Store { return t.engine.store }

// Bridge returns the admin bridge registry.
func (t *Turn) Bridge() bridge.Registry { return t.engine.bridge }

// Catalog returns the configured storefront catalog.
func (t *Turn) Catalog() *Catalog { return &t.engine.catalog }

// AdminID returns the privileged identity.
func (t *Turn) AdminID() int64 { return t.engine.adminID }

// IsAdmin reports whether the event sender is the privileged identity.
func (t *Turn) IsAdmin() bool { return t.Event.Sender == t.engine.adminID }

// Input returns the trimmed text payload of the event.
func (t *Turn) Input() string { return strings.TrimSpace(t.Event.Payload) }

// Emit queues an arbitrary effect.
func (t *Turn) Emit(e Effect) { t.effects = append(t.effects, e) }

// Reply queues a text to the event sender.
func (t *Turn) Reply(text string, choices ...Choice) {
	t.Send(t.Event.Sender, text, choices...)
}

// ReplyFile queues a file reference to the event sender.
func (t *Turn) ReplyFile(ref, caption string) {
	t.Emit(Effect{Kind: EffectFile, To: t.Event.Sender, FileRef: ref, Text: caption})
}

// ReplyMedia queues a media group to the event sender.
func (t *Turn) ReplyMedia(items []MediaItem) {
	t.Emit(Effect{Kind: EffectMedia, To: t.Event.Sender, Media: items})
}

// Send queues a text to an arbitrary recipient.
func (t *Turn) Send(to int64, text string, choices ...Choice) {
	t.Emit(Effect{Kind: EffectText, To: to, Text: text, Choices: choices})
}

// ToAdmin queues a text to the privileged identity.
func (t *Turn) ToAdmin(text string, choices ...Choice) {
	t.Send(t.engine.adminID, text, choices...)
}

// Goto advances the session to st and emits that state's prompt.
func (t *Turn) Goto(st session.State) {
	t.decision = decideGoto
	t.next = st
}

// Retry keeps the current state and re-emits its prompt after hint.
func (t *Turn) Retry(hint string) {
	if hint != "" {
		t.Reply(hint)
	}
	t.decision = decideStay
	t.reprompt = true
}

// Stay keeps the current state without prompting again.
func (t *Turn) Stay() {
	t.decision = decideStay
	t.reprompt = false
}

// End clears the session.
func (t *Turn) End() {
	t.decision = decideEnd
}
