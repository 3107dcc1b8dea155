package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/vpnshop/core/logger"
	"github.com/m3rciful/vpnshop/core/metrics"
)

// PendingNotifier is the engine call the digest job runs.
type PendingNotifier interface {
	PendingDigest(ctx context.Context) (int, error)
}

// Digest runs the pending-approval reminder on a cron schedule.
type Digest struct {
	cron     *cron.Cron
	notifier PendingNotifier
}

// NewDigest parses spec (standard five-field cron) in loc. An empty spec
// returns a nil Digest.
func NewDigest(spec string, loc *time.Location, notifier PendingNotifier) (*Digest, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	d := &Digest{
		cron:     cron.New(cron.WithLocation(loc)),
		notifier: notifier,
	}
	if _, err := d.cron.AddFunc(spec, d.runOnce); err != nil {
		return nil, fmt.Errorf("app: invalid digest.cron %q: %w", spec, err)
	}
	return d, nil
}

// Start begins scheduling in the background.
func (d *Digest) Start() { d.cron.Start() }

// Stop halts scheduling; the returned context is done once a running job finishes.
func (d *Digest) Stop() context.Context { return d.cron.Stop() }

func (d *Digest) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	start := time.Now()
	n, err := d.notifier.PendingDigest(ctx)
	metrics.Digests.WithLabelValues(logger.Status(err)).Inc()
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int("pending_count", n),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		logger.Error(ctx, "sched", "digest.run", append(attrs, slog.String("err", err.Error()))...)
		return
	}
	logger.Debug(ctx, "sched", "digest.run", attrs...)
}
