package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testDispatcher(url string) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		URL:     url,
		BotID:   "bot-1",
		Backoff: time.Millisecond,
	})
}

func TestDispatch_Success(t *testing.T) {
	var gotBody []byte
	var gotBotID, gotAttempt, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotBotID = r.Header.Get("X-Bot-ID")
		gotAttempt = r.Header.Get("X-Retry-Attempt")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testDispatcher(srv.URL).Dispatch(context.Background(), map[string]any{"kind": "login", "user": "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if gotBotID != "bot-1" || gotAttempt != "1" || gotType != "application/json" {
		t.Errorf("headers: bot=%q attempt=%q type=%q", gotBotID, gotAttempt, gotType)
	}
	var decoded map[string]any
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if decoded["user"] != "alice" {
		t.Errorf("unexpected body %s", gotBody)
	}
}

func TestDispatch_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := testDispatcher(srv.URL).Dispatch(context.Background(), map[string]string{"kind": "message"}); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestDispatch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "backend down")
	}))
	defer srv.Close()

	err := testDispatcher(srv.URL).Dispatch(context.Background(), map[string]string{"kind": "message"})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError in chain, got %v", err)
	}
	if httpErr.Status != http.StatusInternalServerError || httpErr.Body != "backend down" {
		t.Errorf("unexpected error detail %+v", httpErr)
	}
}

func TestDispatch_Non2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := testDispatcher(srv.URL).Dispatch(context.Background(), map[string]string{}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestDispatch_AttemptHeaderIncrements(t *testing.T) {
	var attempts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts = append(attempts, r.Header.Get("X-Retry-Attempt"))
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	testDispatcher(srv.URL).Dispatch(context.Background(), map[string]string{})
	if len(attempts) != 3 || attempts[0] != "1" || attempts[1] != "2" || attempts[2] != "3" {
		t.Errorf("unexpected attempt sequence %v", attempts)
	}
}

func TestDispatch_NoEndpointIsNoop(t *testing.T) {
	if err := testDispatcher("").Dispatch(context.Background(), map[string]string{"kind": "message"}); err != nil {
		t.Fatalf("unconfigured endpoint should be a no-op, got %v", err)
	}
}

func TestDispatch_SanitizedOnTheWire(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := map[string]any{"text": nil, "nested": map[string]any{"topic": nil}}
	if err := testDispatcher(srv.URL).Dispatch(context.Background(), payload); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["text"] != "" {
		t.Errorf("null not coerced: %v", decoded["text"])
	}
	if decoded["nested"].(map[string]any)["topic"] != "" {
		t.Errorf("nested null not coerced: %v", decoded["nested"])
	}
}
