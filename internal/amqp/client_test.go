package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{64, 30 * time.Second}, // no shift overflow
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"other error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	t.Run("initial state is closed", func(t *testing.T) {
		if client.isCircuitOpen() {
			t.Error("circuit breaker should be closed initially")
		}
	})

	t.Run("record success resets state", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 3)
		atomic.StoreInt32(&client.state, StateOpen)

		client.recordSuccess()

		if atomic.LoadInt64(&client.failureCount) != 0 {
			t.Error("failure count should be reset")
		}
		if atomic.LoadInt32(&client.state) != StateClosed {
			t.Error("state should be closed after success")
		}
	})

	t.Run("max failures open the circuit", func(t *testing.T) {
		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}
		if !client.isCircuitOpen() {
			t.Error("circuit should be open after max failures")
		}
	})

	t.Run("half-open after timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)

		if client.isCircuitOpen() {
			t.Error("circuit should let a probe through after the timeout")
		}
		if atomic.LoadInt32(&client.state) != StateHalfOpen {
			t.Error("state should be half-open")
		}
	})

	t.Run("failure while half-open reopens", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 0)
		atomic.StoreInt32(&client.state, StateHalfOpen)
		client.recordFailure()
		if atomic.LoadInt32(&client.state) != StateOpen {
			t.Error("a failed probe should reopen the circuit")
		}
	})
}

func TestPublishLedgerEvent_Guards(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}
	event := NewLedgerEvent(EventCreated, core.Transaction{ID: 1}, time.Now())

	t.Run("fails when circuit is open", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishLedgerEvent(context.Background(), event)
		if !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("expected circuit open error, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		client.recordSuccess()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PublishLedgerEvent(ctx, event); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLedgerEventJSON(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tx := core.Transaction{
		ID:           42,
		Date:         core.NewDate(2024, 2, 29),
		Type:         core.Expense,
		Category:     "Travel",
		Amount:       decimal.NewFromInt(10),
		Currency:     core.Foreign,
		ExchangeRate: decimal.NewFromInt(900),
	}
	e := NewLedgerEvent(EventUpdated, tx, now)

	body, err := e.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"date":"2024-02-29"`) {
		t.Errorf("date not encoded as a calendar day: %s", body)
	}

	got, err := LedgerEventFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.EventID != e.EventID || got.Kind != EventUpdated || got.TransactionID != 42 {
		t.Errorf("unexpected event %+v", got)
	}
	if !got.AmountLocal.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("amount local = %s, want 9000", got.AmountLocal)
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, now)
	}
}

func TestLedgerEventFromJSON_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     `{invalid`,
		"missing id":   `{"kind":"created"}`,
		"unknown kind": `{"event_id":"1b4e28ba-2fa1-11d2-883f-0016d3cca427","kind":"archived"}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := LedgerEventFromJSON([]byte(body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type fakeAck struct {
	acked, nacked, requeued int
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked++; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	if requeue {
		f.requeued++
	}
	return nil
}
func (f *fakeAck) Reject(uint64, bool) error { return nil }

func TestHandleDelivery(t *testing.T) {
	good, _ := NewLedgerEvent(EventDeleted, core.Transaction{ID: 7}, time.Now()).ToJSON()
	ok := func(context.Context, LedgerEvent) error { return nil }
	failing := func(context.Context, LedgerEvent) error { return errors.New("boom") }

	tests := []struct {
		name    string
		body    []byte
		handler Handler
		want    fakeAck
	}{
		{"processed", good, ok, fakeAck{acked: 1}},
		{"malformed dropped", []byte("nope"), ok, fakeAck{nacked: 1}},
		{"handler error requeued", good, failing, fakeAck{nacked: 1, requeued: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: tt.body}, tt.handler)
			if *ack != tt.want {
				t.Errorf("got %+v, want %+v", *ack, tt.want)
			}
		})
	}
}
