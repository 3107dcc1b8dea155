package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/m3rciful/vpnshop/core/logger"
)

// Table is the session table used by the engine. It pairs a Store with a
// keyed mutex so that events for one user are processed one at a time while
// different users proceed in parallel.
type Table struct {
	store Store

	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewTable wraps store. A nil store falls back to memory.
func NewTable(store Store) *Table {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Table{store: store, locks: make(map[int64]*userLock)}
}

// Lock blocks until the caller holds the user's lock and returns the release
// function. Lock entries are dropped once no goroutine references them.
func (t *Table) Lock(userID int64) func() {
	t.mu.Lock()
	l, ok := t.locks[userID]
	if !ok {
		l = &userLock{}
		t.locks[userID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, userID)
		}
		t.mu.Unlock()
	}
}

// Get returns the user's active session, if any.
func (t *Table) Get(ctx context.Context, userID int64) (*Session, bool, error) {
	return t.store.Get(ctx, userID)
}

// Save persists the session for the user.
func (t *Table) Save(ctx context.Context, userID int64, sess *Session) error {
	if err := t.store.Save(ctx, userID, sess); err != nil {
		return err
	}
	logger.Debug(ctx, "session", "session.save",
		slog.Int64("user_id", userID),
		slog.String("flow", sess.Flow),
		slog.String("state", string(sess.State)),
	)
	return nil
}

// Clear removes the user's session. Clearing an idle user is a no-op.
func (t *Table) Clear(ctx context.Context, userID int64) error {
	if err := t.store.Clear(ctx, userID); err != nil {
		return err
	}
	logger.Debug(ctx, "session", "session.clear",
		slog.Int64("user_id", userID),
	)
	return nil
}
