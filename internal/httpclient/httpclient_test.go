package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var observed []Observation
	c := New(DefaultBreakerConfig(), func(o Observation) { observed = append(observed, o) }, nil)

	resp, err := c.Do(context.Background(), Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode())
	}
	if len(observed) != 1 || observed[0].ErrClass != ErrClassNone {
		t.Fatalf("expected one NONE observation, got %+v", observed)
	}
}

func TestDoUserErrorNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(DefaultBreakerConfig(), nil, nil)
	resp, err := c.Do(context.Background(), Config{URL: srv.URL, RetryDelay: time.Millisecond})
	if err == nil {
		t.Fatal("expected an error for a 400 response")
	}
	if resp.StatusCode() != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode())
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected exactly one attempt for a USER-class failure, got %d", hits)
	}
}

func TestDoNetworkErrorRetries(t *testing.T) {
	c := New(DefaultBreakerConfig(), nil, nil)
	// Point at a URL nothing listens on: every attempt is a network error.
	_, err := c.Do(context.Background(), Config{
		URL:        "http://127.0.0.1:1",
		Retries:    2,
		RetryDelay: time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected a network error")
	}
}

func TestDoShortCircuitsWhenBreakerOpen(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour, HalfOpenSuccessThreshold: 1}, nil, nil)

	// First call fails with a 500, a concrete response, so it is not
	// retried — but it still records one breaker failure, which is
	// enough to open the breaker at threshold=1.
	_, err := c.Do(context.Background(), Config{URL: srv.URL, RetryDelay: time.Millisecond})
	if err == nil {
		t.Fatal("expected the first call to fail")
	}

	_, err = c.Do(context.Background(), Config{URL: srv.URL, RetryDelay: time.Millisecond})
	if !errors.Is(err, ErrShortCircuited) {
		t.Fatalf("expected ErrShortCircuited on the second call, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected the server to see exactly one request, got %d", hits)
	}
}
