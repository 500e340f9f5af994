package instrumentation

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/workgate/workgate/internal/breaker"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	meter := noop.NewMeterProvider().Meter("test")
	m, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m
}

func TestNewMetrics(t *testing.T) {
	m := newTestMetrics(t)
	if m == nil {
		t.Fatal("expected metrics to be non-nil")
	}
}

func TestMetrics_RecordDoesNotPanic(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics(t)

	m.RecordRPCRequest(ctx, "tools/call", StatusSuccess, 10*time.Millisecond)
	m.RecordAuthAttempt(ctx, AuthMethodBearer, StatusSuccess)
	m.RecordOAuthTokenRefresh(ctx, RefreshResultSuccess)
	m.RecordUpstreamOperation(ctx, ServiceGmail, "listMessages", StatusSuccess, 50*time.Millisecond)
	m.RecordCircuitTransition(ctx, "listMessages", "closed", "open")
	m.RecordCircuitRejection(ctx, "listMessages")
	m.RecordToolInvocation(ctx, "gmail_list_messages", StatusSuccess, "", 50*time.Millisecond)
	m.IncrementActiveSessions(ctx)
	m.DecrementActiveSessions(ctx)
}

func TestMetrics_UninitializedIsNoOp(t *testing.T) {
	ctx := context.Background()
	m := &Metrics{}

	// None of these may panic when instruments were never created.
	m.RecordRPCRequest(ctx, "tools/list", StatusSuccess, time.Millisecond)
	m.RecordAuthAttempt(ctx, AuthMethodCookie, StatusError)
	m.RecordOAuthTokenRefresh(ctx, RefreshResultFailure)
	m.RecordUpstreamOperation(ctx, ServiceForms, "getForm", StatusError, time.Millisecond)
	m.RecordCircuitTransition(ctx, "getForm", "open", "half-open")
	m.RecordCircuitRejection(ctx, "getForm")
	m.RecordToolInvocation(ctx, "forms_get_form", StatusError, "", time.Millisecond)
	m.IncrementActiveSessions(ctx)
	m.DecrementActiveSessions(ctx)
}

func TestMetrics_WatchBreakersStopsOnClose(t *testing.T) {
	m := newTestMetrics(t)

	events := make(chan breaker.Event, 1)
	events <- breaker.Event{Circuit: "listMessages", From: "closed", To: "open", At: time.Now()}
	close(events)

	done := make(chan struct{})
	go func() {
		m.WatchBreakers(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchBreakers did not return after channel close")
	}
}

func TestMetrics_WatchBreakersStopsOnContext(t *testing.T) {
	m := newTestMetrics(t)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan breaker.Event)

	done := make(chan struct{})
	go func() {
		m.WatchBreakers(ctx, events)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchBreakers did not return after context cancel")
	}
}
