// Package session keeps the per-user conversation record: which flow is
// active, which state it is in and the flow-scoped variables collected so far.
// A user has at most one session; Clear is the only way to end it.
package session

import (
	"context"
	"strconv"
)

// State identifies a step inside a flow.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and flow-scoped data for a user.
type Session struct {
	Flow  string            `json:"flow"`
	State State             `json:"state"`
	Vars  map[string]string `json:"vars,omitempty"`
}

// New returns a session positioned at the given flow state.
func New(flow string, st State) *Session {
	return &Session{Flow: flow, State: st, Vars: make(map[string]string)}
}

// Set stores a flow-scoped variable.
func (s *Session) Set(key, value string) {
	if s.Vars == nil {
		s.Vars = make(map[string]string)
	}
	s.Vars[key] = value
}

// Get returns a flow-scoped variable.
func (s *Session) Get(key string) (string, bool) {
	if s == nil || s.Vars == nil {
		return "", false
	}
	v, ok := s.Vars[key]
	return v, ok
}

// SetInt64 stores an integer variable in its decimal form.
func (s *Session) SetInt64(key string, value int64) {
	s.Set(key, strconv.FormatInt(value, 10))
}

// Int64 retrieves a variable stored with SetInt64.
func (s *Session) Int64(key string) (int64, bool) {
	raw, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Clone returns a deep copy so stored sessions are never aliased by callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := &Session{Flow: s.Flow, State: s.State, Vars: make(map[string]string, len(s.Vars))}
	for k, v := range s.Vars {
		out.Vars[k] = v
	}
	return out
}

// Store persists sessions keyed by user id.
type Store interface {
	// Get returns the active session or ok=false when the user is idle.
	Get(ctx context.Context, userID int64) (sess *Session, ok bool, err error)
	Save(ctx context.Context, userID int64, sess *Session) error
	Clear(ctx context.Context, userID int64) error
}
