package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/paperlens/paperlens/internal/logger"
)

func TestBytesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	c := NewClient(logger.NewNoOp())
	data, err := c.Bytes(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("Bytes() = %q", data)
	}
}

func TestBytesRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("eventually"))
	}))
	defer srv.Close()

	c := NewClient(logger.NewNoOp(), WithMaxRetries(3))
	data, err := c.Bytes(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if string(data) != "eventually" {
		t.Errorf("Bytes() = %q", data)
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}
}

func TestBytesExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(logger.NewNoOp(), WithMaxRetries(1))
	_, err := c.Bytes(context.Background(), srv.URL)
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Bytes() error = %v, want ErrExhausted", err)
	}
}

func TestBytesDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(logger.NewNoOp(), WithMaxRetries(3))
	if _, err := c.Bytes(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestIsDataURI(t *testing.T) {
	if !IsDataURI("data:image/png;base64,AAAA") {
		t.Error("data URI not recognized")
	}
	if IsDataURI("https://example.org/fig.png") {
		t.Error("http URL misclassified as data URI")
	}
}
