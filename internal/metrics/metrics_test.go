package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeHost(tc.input); got != tc.expected {
				t.Errorf("SanitizeHost(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if providerRequestsTotal == nil || classifierCallsTotal == nil ||
		httpRequestsTotal == nil || pollerTrackersTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(classifierCallsTotal.WithLabelValues("failure"))
	ObserveClassification("failure")
	if val := testutil.ToFloat64(classifierCallsTotal.WithLabelValues("failure")); val != before+1 {
		t.Errorf("Expected classifier failure counter to grow by 1, got %f -> %f", before, val)
	}
}

func TestCacheLookupLabels(t *testing.T) {
	Init()
	hits := testutil.ToFloat64(providerCacheLookupsTotal.WithLabelValues("profile", "hit"))
	ObserveCacheLookup("profile", true)
	ObserveCacheLookup("profile", false)
	if val := testutil.ToFloat64(providerCacheLookupsTotal.WithLabelValues("profile", "hit")); val != hits+1 {
		t.Errorf("Expected one additional hit, got %f -> %f", hits, val)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObservePollCycle("ok", 2*time.Second)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "followwatch_poller_cycles_total") {
		t.Fatal("expected poller cycle counter in exposition")
	}
}

// Fuzz test for SanitizeHost.
func FuzzSanitizeHost(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeHost(orig) == "" {
			t.Errorf("SanitizeHost(%q) returned an empty string", orig)
		}
	})
}
