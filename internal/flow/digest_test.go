package flow

import (
	"context"
	"fmt"
	"testing"
)

func TestPendingDigest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	n, err := h.engine.PendingDigest(ctx)
	if err != nil || n != 0 {
		t.Fatalf("empty digest = %d, %v", n, err)
	}
	if len(h.msgr.to(testAdmin)) != 0 {
		t.Fatal("empty queue notified the admin")
	}

	h.user(t, 11, 0, false)
	h.user(t, 12, 0, true)
	h.user(t, 13, 0, false)
	n, err = h.engine.PendingDigest(ctx)
	if err != nil || n != 2 {
		t.Fatalf("digest = %d, %v", n, err)
	}
	if got, want := h.msgr.lastText(testAdmin), fmt.Sprintf(msgPendingDigest, 2); got != want {
		t.Fatalf("admin got %q, want %q", got, want)
	}
	sent := h.msgr.to(testAdmin)
	if len(sent[0].choices) != 1 || sent[0].choices[0].Key != keyListPending {
		t.Fatalf("choices = %+v", sent[0].choices)
	}
}
