// Package testutil provides shared test helpers and fixtures for packages
// that drive the scan executor.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/scan"
)

// RunStart is the start time of TestRun. Its run stamp is "1504_00" and its
// run date "2024-03-01".
var RunStart = time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC)

// TestRun returns a fixed run identity.
func TestRun() scan.RunInfo {
	return scan.RunInfo{
		ID:        "run-1",
		Sequence:  "RabiFlopping",
		Stamp:     "1504_00",
		StartedAt: RunStart,
	}
}

// Store returns the built-in parameters with overrides applied. Keys are
// "Collection.name".
func Store(t *testing.T, overrides map[string]any) *params.MapStore {
	t.Helper()
	s := params.DefaultStore()
	for k, raw := range overrides {
		key, err := params.ParseKey(k)
		if err != nil {
			t.Fatalf("override %q: %v", k, err)
		}
		v, err := params.FromAny(raw)
		if err != nil {
			t.Fatalf("override %q: %v", k, err)
		}
		s.Set(key, v)
	}
	return s
}

// TB is the part of testing.TB the assertion helpers use.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewLoopbackRequest creates a test HTTP request from 127.0.0.1, which the
// /debug/ routes accept.
func NewLoopbackRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:4321"
	return req
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
