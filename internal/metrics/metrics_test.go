package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PoluyanbIch/QuizBot/internal/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHealthz(t *testing.T) {
	cases := []struct {
		name   string
		health HealthFunc
		want   int
	}{
		{"no check", nil, http.StatusOK},
		{"healthy", func(context.Context) error { return nil }, http.StatusOK},
		{"unhealthy", func(context.Context) error { return errors.New("db down") }, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewRouter(c.health).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != c.want {
				t.Fatalf("expected %d, got %d", c.want, rec.Code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	SetBankSize(7)
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "quiz_bank_questions 7") {
		t.Fatalf("bank gauge missing from output")
	}
}

func TestRecorder(t *testing.T) {
	var p Prometheus
	startedBefore := testutil.ToFloat64(sessionsStarted)
	finishedBefore := testutil.ToFloat64(sessionsEnded.WithLabelValues(string(service.StatusFinished)))
	correctBefore := testutil.ToFloat64(answers.WithLabelValues("correct"))

	p.SessionStarted()
	p.AnswerRecorded(true)
	p.AnswerRecorded(false)
	p.SessionEnded(service.StatusFinished)

	if got := testutil.ToFloat64(sessionsStarted) - startedBefore; got != 1 {
		t.Fatalf("started delta %v", got)
	}
	if got := testutil.ToFloat64(sessionsEnded.WithLabelValues(string(service.StatusFinished))) - finishedBefore; got != 1 {
		t.Fatalf("finished delta %v", got)
	}
	if got := testutil.ToFloat64(answers.WithLabelValues("correct")) - correctBefore; got != 1 {
		t.Fatalf("correct delta %v", got)
	}
}

func TestActiveSessionsSeededFromStorage(t *testing.T) {
	var p Prometheus
	SetActiveSessions(3)
	p.SessionEnded(service.StatusCancelled)
	p.SessionEnded(service.StatusFinished)
	p.SessionStarted()
	if got := testutil.ToFloat64(activeSessions); got != 2 {
		t.Fatalf("expected 2 active sessions, got %v", got)
	}

	// sessions left over from before a restart end without going negative
	SetActiveSessions(1)
	p.SessionEnded(service.StatusCancelled)
	if got := testutil.ToFloat64(activeSessions); got != 0 {
		t.Fatalf("expected 0 active sessions, got %v", got)
	}
}

func TestServeDisabled(t *testing.T) {
	if err := Serve(context.Background(), "", nil); err != nil {
		t.Fatalf("disabled server returned %v", err)
	}
}
