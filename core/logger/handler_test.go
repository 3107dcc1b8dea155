package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLine runs fn against a handler writing to a buffer and returns the output.
func captureLine(t *testing.T, format logFormat, order []string, fn func(ctx context.Context, log *slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	log := slog.New(newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: order,
	}))
	fn(WithLogger(context.Background(), log), log)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestKVOrdersFlowFields(t *testing.T) {
	line := captureLine(t, formatKV, nil, func(ctx context.Context, _ *slog.Logger) {
		ctx = WithRID(ctx, "5:10:7")
		ctx = WithUpdateMeta(ctx, 5, 7, 10)
		Info(ctx, "flow", "flow.turn",
			slog.Int64("amount", 100),
			slog.Int64("target_id", 42),
			slog.String("route", "step"),
			slog.String("state", "amount"),
			slog.String("flow", "transfer-credit"),
			slog.Duration("duration", 12*time.Millisecond),
			slog.String("err", "insufficient credit"),
		)
	})
	tokens := strings.Split(line, " ")
	want := []string{
		"ts=", "level=INFO", "component=flow", "event=flow.turn", "rid=5.a.7",
		"update_id=5", "user_id=7", "chat_id=10",
		"flow=transfer-credit", "state=amount", "route=step", "target_id=42", "amount=100",
		"duration_ms=12", `err="insufficient`,
	}
	if len(tokens) < len(want) {
		t.Fatalf("line too short: %s", line)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, want prefix %s (line %s)", i, tokens[i], prefix, line)
		}
	}
}

func TestJSONKeepsFullRID(t *testing.T) {
	line := captureLine(t, formatJSON, nil, func(ctx context.Context, _ *slog.Logger) {
		Error(WithRID(ctx, "12:34:56"), "ledger", "ledger.transfer",
			slog.Int64("amount", 5),
			slog.String("status", "ERROR"),
			slog.String("flow", "transfer-credit"),
		)
	})
	for _, part := range []string{`"rid":"c.y.1k"`, `"rid_full":"12:34:56"`, `"ts_unix_nano":`, `"status":"error"`} {
		if !strings.Contains(line, part) {
			t.Fatalf("missing %s in %s", part, line)
		}
	}
	order := []string{`{"ts":`, `"level":"ERROR"`, `"component":"ledger"`, `"event":"ledger.transfer"`, `"status":`, `"rid":`, `"flow":`, `"amount":`}
	pos := -1
	for _, part := range order {
		idx := strings.Index(line, part)
		if idx <= pos {
			t.Fatalf("%s out of order in %s", part, line)
		}
		pos = idx
	}
}

func TestKVUnknownRIDKeptAsIs(t *testing.T) {
	line := captureLine(t, formatKV, nil, func(ctx context.Context, _ *slog.Logger) {
		Info(WithRID(ctx, "digest"), "sched", "digest.run")
	})
	if !strings.Contains(line, "rid=digest") || strings.Contains(line, "rid_full") {
		t.Fatalf("rid rewritten: %s", line)
	}
}

func TestGroupPrefixesLaterAttrs(t *testing.T) {
	line := captureLine(t, formatKV, nil, func(_ context.Context, log *slog.Logger) {
		log.With("component", "bridge").WithGroup("binding").With("token", "abc").Info("bind", "kind", "account")
	})
	for _, part := range []string{"component=bridge", "event=bind", "binding.token=abc", "binding.kind=account"} {
		if !strings.Contains(line, part) {
			t.Fatalf("missing %s in %s", part, line)
		}
	}
}

func TestCustomKeyOrder(t *testing.T) {
	line := captureLine(t, formatKV, parseKeyOrder(" amount, flow ,"), func(ctx context.Context, _ *slog.Logger) {
		Info(ctx, "flow", "flow.turn", slog.String("flow", "top-up"), slog.Int("amount", 3))
	})
	tokens := strings.Split(line, " ")
	if tokens[0] != "amount=3" || tokens[1] != "flow=top-up" {
		t.Fatalf("custom order ignored: %s", line)
	}
	if got := parseKeyOrder("default"); len(got) != len(defaultKeyOrder) {
		t.Fatalf("default order = %v", got)
	}
}

func TestDisabledLevelWritesNothing(t *testing.T) {
	line := captureLine(t, formatKV, nil, func(ctx context.Context, _ *slog.Logger) {
		Debug(ctx, "tg", "update.received", slog.String("payload", "hi"))
	})
	if line != "" {
		t.Fatalf("debug line written at info level: %s", line)
	}
}

func TestEmptyStringsPruned(t *testing.T) {
	line := captureLine(t, formatKV, nil, func(ctx context.Context, _ *slog.Logger) {
		Warn(ctx, "", "fallback", slog.String("reason", ""), slog.Any("err", errors.New("boom")))
	})
	if strings.Contains(line, "reason=") || !strings.Contains(line, "component=app") || !strings.Contains(line, "err=boom") {
		t.Fatalf("unexpected line: %s", line)
	}
}

func TestAsyncWriterFansOut(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{a, nil, b}, 16)
	for _, line := range []string{"one\n", "two\n", "three\n"} {
		if err := aw.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if a.String() != "one\ntwo\nthree\n" {
		t.Fatalf("sink a = %q", a.String())
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if b.String() != a.String() {
		t.Fatalf("sinks differ: %q vs %q", a.String(), b.String())
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var got []bool
	for range 6 {
		got = append(got, s.Allow())
	}
	want := []bool{true, false, false, true, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("allow sequence = %v", got)
		}
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("disabled sampler must allow everything")
	}

	cases := map[string][2]int{"1/50": {1, 50}, "10": {1, 10}, " 2 / 5 ": {2, 5}, "0": {0, 0}, "x": {0, 0}, "3/-1": {0, 0}}
	for raw, w := range cases {
		if num, den := parseRatio(raw); num != w[0] || den != w[1] {
			t.Fatalf("parseRatio(%q) = %d/%d, want %d/%d", raw, num, den, w[0], w[1])
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\nd", 10); got != "abc\nd" {
		t.Fatalf("sanitize = %q", got)
	}
	if got := SanitizeLimit("héllo", 2); got != "hé" {
		t.Fatalf("limit = %q", got)
	}
	if got := SanitizeLimit("abc", 0); got != "" {
		t.Fatalf("zero limit = %q", got)
	}
}

func TestSettingsFromProfile(t *testing.T) {
	s := settingsFrom(nil)
	if s.format != formatJSON || s.num != 1 || s.den != 50 || s.level != slog.LevelInfo {
		t.Fatalf("nil settings = %+v", s)
	}
}
