package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Base: time.Millisecond}
}

func TestGetJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := GetJSON(context.Background(), fastPolicy(4), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestGetJSONRetriesNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "not yet", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := GetJSON(context.Background(), fastPolicy(4), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("expected eventual success, got: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestGetJSONServerErrorIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := GetJSON(context.Background(), fastPolicy(4), srv.Client(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Errorf("expected StatusError 500, got: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected no retries on 500, got %d attempts", got)
	}
}

func TestGetJSONExhaustsAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := GetJSON(context.Background(), fastPolicy(3), srv.Client(), srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Errorf("expected StatusError 404, got: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", got)
	}
}

func TestDoBackoffDelaysGrow(t *testing.T) {
	base := 20 * time.Millisecond
	p := Policy{Attempts: 3, Base: base}

	start := time.Now()
	_, err := Do(context.Background(), p, "test", func(context.Context) (struct{}, error) {
		return struct{}{}, errors.New("transient")
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error")
	}
	// Waits between the three attempts are base and 2*base.
	if want := 3 * base; elapsed < want {
		t.Errorf("expected at least %v of backoff, got %v", want, elapsed)
	}
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	attempts := 0
	sentinel := errors.New("fatal")
	_, err := Do(context.Background(), fastPolicy(4), "test", func(context.Context) (int, error) {
		attempts++
		return 0, Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDoCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 4, Base: time.Second}

	_, err := Do(ctx, p, "test", func(context.Context) (int, error) {
		cancel()
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestPostFormRebuildsRequestPerAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("token") != "abc" {
			t.Errorf("attempt %d: form body not readable", hits.Load()+1)
		}
		if hits.Add(1) == 1 {
			http.Error(w, "not yet", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	built := 0
	_, err := PostForm(context.Background(), fastPolicy(4), srv.Client(), func(ctx context.Context) (*http.Request, error) {
		built++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, strings.NewReader("token=abc"))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built != 2 {
		t.Errorf("expected request factory called per attempt, got %d", built)
	}
}
