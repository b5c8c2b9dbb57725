package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialInterval = time.Millisecond
	cfg.PerAttemptTimeout = time.Second
	return cfg
}

func TestDeliverSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Idempotency-Key") != "key-1" {
			t.Errorf("missing idempotency key header")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(fastConfig())
	res, err := c.Deliver(context.Background(), domain.DeliveryPayload{Message: "hi", WebhookURL: srv.URL}, "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("got status %d", res.StatusCode)
	}
}

func TestDeliverPermanentNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(fastConfig())
	_, err := c.Deliver(context.Background(), domain.DeliveryPayload{Message: "hi", WebhookURL: srv.URL}, "key-2")
	if err == nil {
		t.Fatal("expected error")
	}
	var permErr *PermanentDeliveryError
	if pe, ok := err.(*PermanentDeliveryError); ok {
		permErr = pe
	}
	if permErr == nil {
		t.Fatalf("expected *PermanentDeliveryError, got %T: %v", err, err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call for a 4xx, got %d", calls)
	}
}

func TestDeliverTransientExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := fastConfig()
	c := New(cfg)
	_, err := c.Deliver(context.Background(), domain.DeliveryPayload{Message: "hi", WebhookURL: srv.URL}, "key-3")
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*TransientDeliveryError); !ok {
		t.Fatalf("expected *TransientDeliveryError, got %T: %v", err, err)
	}
	if calls != int32(cfg.MaxAttempts) {
		t.Errorf("expected %d attempts, got %d", cfg.MaxAttempts, calls)
	}
}

func TestDeliverSucceedsAfterTransientRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(fastConfig())
	res, err := c.Deliver(context.Background(), domain.DeliveryPayload{Message: "hi", WebhookURL: srv.URL}, "key-4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("got status %d", res.StatusCode)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
