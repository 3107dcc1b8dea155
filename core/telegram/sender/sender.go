package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/vpnshop/core/logger"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Options controls the fan-out pool.
type Options struct {
	Workers int
	// MaxDuration bounds a single job.
	MaxDuration time.Duration
}

// Job is one outbound call addressed to a single recipient.
type Job struct {
	Action string
	Target int64
	Run    func(ctx context.Context) error
}

// Result records the outcome of a failed job.
type Result struct {
	Target int64
	Err    error
}

// Summary aggregates a fan-out run.
type Summary struct {
	Sent     int
	Failed   int
	Failures []Result
}

// Fanout runs jobs on a bounded worker pool. A failing job is logged and
// skipped; it never stops the remaining jobs. Fanout returns once every job
// has finished or the context is cancelled.
func Fanout(ctx context.Context, opts Options, jobs []Job) Summary {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Workers > len(jobs) {
		opts.Workers = len(jobs)
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	queue := make(chan Job)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sent     atomic.Int64
		failures []Result
	)
	wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer wg.Done()
			for j := range queue {
				if err := runJob(ctx, opts, j); err != nil {
					mu.Lock()
					failures = append(failures, Result{Target: j.Target, Err: err})
					mu.Unlock()
					continue
				}
				sent.Add(1)
			}
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case queue <- j:
		}
	}
	close(queue)
	wg.Wait()

	return Summary{
		Sent:     int(sent.Load()),
		Failed:   len(jobs) - int(sent.Load()),
		Failures: failures,
	}
}

func runJob(ctx context.Context, opts Options, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	jobCtx, cancel := context.WithTimeout(ctx, opts.MaxDuration)
	defer cancel()

	start := time.Now()
	err := j.Run(jobCtx)
	if err != nil {
		logSendFailure(ctx, j, err, time.Since(start))
		return err
	}
	logger.Debug(ctx, "tg.sender", "send.success",
		append(sendLogAttrs(ctx, j), slog.Int("elapsed_ms", durationToMS(time.Since(start))))...,
	)
	return nil
}

func sendLogAttrs(ctx context.Context, j Job) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", j.Action),
		slog.Int64("target_id", j.Target),
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if userID := logger.UserIDFrom(ctx); userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
	}
	return attrs
}

func logSendFailure(ctx context.Context, j Job, err error, elapsed time.Duration) {
	attrs := sendLogAttrs(ctx, j)
	attrs = append(attrs,
		slog.String("err", SanitizeError(err)),
		slog.String("err_code", ClassifyError(err)),
		slog.Int("elapsed_ms", durationToMS(elapsed)),
	)
	logger.Warn(ctx, "tg.sender", "send.fail", attrs...)
}

func durationToMS(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(logger.RoundMS(d) / time.Millisecond)
}

// ClassifyError maps a delivery error to a coarse kind for logs and metrics.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return "timeout"
		}
		if opErr.Op == "dial" {
			return "dial"
		}
		if opErr.Op == "read" || opErr.Op == "write" {
			if kind := ClassifyError(opErr.Err); kind != "" && kind != "unknown" {
				return kind
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "timeout"
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			if kind := ClassifyError(urlErr.Err); kind != "" && kind != "unknown" {
				return kind
			}
		}
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	status := httpStatusFromError(err)
	switch {
	case status == http.StatusForbidden:
		return "blocked"
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}

	return "unknown"
}

// SanitizeError renders err with Telegram bot tokens redacted.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if msg == "" {
		return ""
	}
	return tokenRe.ReplaceAllString(msg, "bot<redacted>")
}

func httpStatusFromError(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}

	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}

	msg := err.Error()
	if msg == "" {
		return 0
	}

	lastOpen := strings.LastIndex(msg, "(")
	lastClose := strings.LastIndex(msg, ")")
	if lastOpen >= 0 && lastClose > lastOpen+1 {
		codeStr := strings.TrimSpace(msg[lastOpen+1 : lastClose])
		if code, convErr := strconv.Atoi(codeStr); convErr == nil {
			return code
		}
	}

	return 0
}
