package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/vpnshop/core/logger"
	"github.com/m3rciful/vpnshop/core/metrics"
	"github.com/m3rciful/vpnshop/core/telegram/sender"
	"github.com/m3rciful/vpnshop/internal/bridge"
)

// albumLimit is the largest media group the transport accepts.
const albumLimit = 10

// Courier delivers effects through a Messenger.
type Courier struct {
	messenger Messenger
	bridge    bridge.Registry
	workers   int
}

// NewCourier constructs a Courier. workers bounds broadcast concurrency.
func NewCourier(m Messenger, b bridge.Registry, workers int) *Courier {
	return &Courier{messenger: m, bridge: b, workers: workers}
}

// Deliver sends effects in order. A failed effect is logged and reported to
// its ReportTo recipient; the remaining effects are still delivered.
func (c *Courier) Deliver(ctx context.Context, effects []Effect) {
	for _, e := range effects {
		if e.Kind == EffectBroadcast {
			c.broadcast(ctx, e)
			continue
		}
		err := c.send(ctx, e)
		metrics.Deliveries.WithLabelValues(e.Kind.String(), logger.Status(err)).Inc()
		if err != nil {
			logger.Warn(ctx, "flow", "deliver.fail",
				slog.Int64("target_id", e.To),
				slog.String("kind", e.Kind.String()),
				slog.String("err", sender.SanitizeError(err)),
				slog.String("err_code", sender.ClassifyError(err)),
			)
			c.report(ctx, e.ReportTo, e.OnFailure)
			continue
		}
		if e.Release != "" && c.bridge != nil {
			if relErr := c.bridge.Release(ctx, e.Release); relErr != nil {
				logger.Warn(ctx, "bridge", "bridge.release",
					slog.String("err", relErr.Error()),
				)
			}
		}
		c.report(ctx, e.ReportTo, e.OnSuccess)
	}
}

func (c *Courier) send(ctx context.Context, e Effect) error {
	switch e.Kind {
	case EffectText:
		return c.messenger.SendText(ctx, e.To, e.Text, e.Choices)
	case EffectFile:
		return c.messenger.SendFile(ctx, e.To, e.FileRef, e.Text)
	case EffectMedia:
		for start := 0; start < len(e.Media); start += albumLimit {
			end := start + albumLimit
			if end > len(e.Media) {
				end = len(e.Media)
			}
			if err := c.messenger.SendMediaGroup(ctx, e.To, e.Media[start:end]); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported effect kind %s", e.Kind)
}

func (c *Courier) broadcast(ctx context.Context, e Effect) {
	jobs := make([]sender.Job, 0, len(e.Recipients))
	for _, id := range e.Recipients {
		to := id
		jobs = append(jobs, sender.Job{
			Action: "broadcast",
			Target: to,
			Run: func(ctx context.Context) error {
				return c.messenger.SendText(ctx, to, e.Text, e.Choices)
			},
		})
	}
	sum := sender.Fanout(ctx, sender.Options{Workers: c.workers}, jobs)
	metrics.Deliveries.WithLabelValues(e.Kind.String(), "ok").Add(float64(sum.Sent))
	metrics.Deliveries.WithLabelValues(e.Kind.String(), "error").Add(float64(sum.Failed))
	logger.Info(ctx, "flow", "broadcast.done",
		slog.Int("count", len(jobs)),
		slog.Int("sent", sum.Sent),
		slog.Int("failed", sum.Failed),
	)
	c.report(ctx, e.ReportTo, fmt.Sprintf(msgBroadcastSummary, sum.Sent, sum.Failed))
}

func (c *Courier) report(ctx context.Context, to int64, text string) {
	if to == 0 || text == "" {
		return
	}
	if err := c.messenger.SendText(ctx, to, text, nil); err != nil {
		logger.Warn(ctx, "flow", "report.fail",
			slog.Int64("target_id", to),
			slog.String("err", sender.SanitizeError(err)),
		)
	}
}
