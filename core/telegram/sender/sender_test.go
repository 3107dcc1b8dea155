package sender

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestFanoutContinuesPastFailures(t *testing.T) {
	var (
		mu      sync.Mutex
		visited []int64
	)
	var jobs []Job
	for id := int64(1); id <= 10; id++ {
		id := id
		jobs = append(jobs, Job{
			Action: "broadcast",
			Target: id,
			Run: func(context.Context) error {
				mu.Lock()
				visited = append(visited, id)
				mu.Unlock()
				if id == 4 {
					return errors.New("chat not found")
				}
				return nil
			},
		})
	}

	sum := Fanout(context.Background(), Options{Workers: 3}, jobs)
	if sum.Sent != 9 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sum.Failures) != 1 || sum.Failures[0].Target != 4 {
		t.Fatalf("failures = %+v", sum.Failures)
	}
	if len(visited) != 10 {
		t.Fatalf("visited %d recipients, want 10", len(visited))
	}
}

func TestFanoutEmpty(t *testing.T) {
	sum := Fanout(context.Background(), Options{}, nil)
	if sum.Sent != 0 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestClassifyError(t *testing.T) {
	cases := map[string]error{
		"blocked":  &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"},
		"http_4xx": &tele.Error{Code: 400, Description: "Bad Request: chat not found"},
		"http_5xx": errors.New("telegram: internal error (502)"),
		"timeout":  context.DeadlineExceeded,
		"unknown":  errors.New("boom"),
	}
	for want, err := range cases {
		if got := ClassifyError(err); got != want {
			t.Fatalf("ClassifyError(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestSanitizeErrorRedactsToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AA-secret_token/sendMessage": EOF`)
	got := SanitizeError(err)
	if strings.Contains(got, "secret") || !strings.Contains(got, "bot<redacted>") {
		t.Fatalf("token leaked: %s", got)
	}
}
