package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSendAndParseDecodesJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"mark"}`))
	}))
	defer ts.Close()

	var out struct {
		Name string `json:"name"`
	}
	c := NewClient(WithTimeout(2 * time.Second))
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: ts.URL}, &out)
	if err != nil {
		t.Fatalf("SendAndParse: %v", err)
	}
	if out.Name != "mark" {
		t.Fatalf("name = %q, want mark", out.Name)
	}
}

func TestSendAndParseRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := NewClient()
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:     MethodPost,
		URL:        ts.URL,
		Body:       map[string]string{"k": "v"},
		Retries:    2,
		RetryDelay: time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("SendAndParse: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("hits = %d, want 3", got)
	}
}

func TestSendAndParseStopsOnClientError(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewClient()
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:     MethodPost,
		URL:        ts.URL,
		Body:       "{}",
		Retries:    3,
		RetryDelay: time.Millisecond,
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected error %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("hits = %d, want 1 (4xx must not retry)", got)
	}
}

func TestSendAndParseRawBytes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("raw payload"))
	}))
	defer ts.Close()

	var raw []byte
	c := NewClient()
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: ts.URL}, &raw)
	if err != nil {
		t.Fatalf("SendAndParse: %v", err)
	}
	if string(raw) != "raw payload" {
		t.Fatalf("raw = %q", raw)
	}
}
