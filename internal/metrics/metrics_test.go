package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://tfrrs.org/results/xc/1", "tfrrs.org"},
		{"standard https", "https://WWW.tfrrs.org/path", "www.tfrrs.org"},
		{"no scheme", "tfrrs.org/path", "tfrrs.org"},
		{"host with port", "localhost:8080", "localhost"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	ObserveMeet("succeeded")
	ObserveMeet("succeeded")
	ObserveMeet("fetch")
	assert.InDelta(t, 2, testutil.ToFloat64(meetsTotal.WithLabelValues("succeeded")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(meetsTotal.WithLabelValues("fetch")), 0)
}

func TestObserveFetchAndResults(t *testing.T) {
	ObserveFetch("https://www.tfrrs.org/results/xc/1", "ok", 512, 20*time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(fetchTotal.WithLabelValues("www.tfrrs.org", "ok")), 0)
	assert.InDelta(t, 512, testutil.ToFloat64(fetchBytesTotal.WithLabelValues("www.tfrrs.org")), 0)

	before := testutil.ToFloat64(resultsIngestedTotal)
	ObserveResultsIngested(3)
	ObserveRowsExcluded(1)
	assert.InDelta(t, before+3, testutil.ToFloat64(resultsIngestedTotal), 0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(rowsExcludedTotal), 1.0)
}

func TestActiveWorkersGauge(t *testing.T) {
	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	assert.InDelta(t, 1, testutil.ToFloat64(activeWorkers), 0)
	DecActiveWorkers()
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://tfrrs.org", "https://www.tfrrs.org/results/xc/1", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
