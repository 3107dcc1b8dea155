package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/vpnshop/core/logger"
)

// PendingDigest reminds the admin of users awaiting approval and returns the
// pending count. Nothing is sent when the queue is empty.
func (e *Engine) PendingDigest(ctx context.Context) (int, error) {
	users, err := e.store.PendingUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("pending digest: %w", err)
	}
	logger.Info(ctx, "sched", "digest.pending", slog.Int("pending_count", len(users)))
	if len(users) == 0 {
		return 0, nil
	}
	e.Deliver(ctx, []Effect{{
		Kind:    EffectText,
		To:      e.adminID,
		Text:    fmt.Sprintf(msgPendingDigest, len(users)),
		Choices: []Choice{{Label: labelListPending, Key: keyListPending}},
	}})
	return len(users), nil
}
