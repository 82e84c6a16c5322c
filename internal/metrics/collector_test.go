package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveAttempt("yahoo", "network", 120*time.Millisecond)
	c.ObserveAttempt("finnhub", "success", 80*time.Millisecond)
	c.ObserveAttempt("finnhub", "success", 90*time.Millisecond)
	c.ObserveLookup("hit")
	c.ObserveLookup("stale")
	c.ObserveCycle(2 * time.Second)
	c.CycleSkipped()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerAttempts.WithLabelValues("yahoo", "network")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.providerAttempts.WithLabelValues("finnhub", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cyclesSkipped))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "xtbhelper_provider_attempts_total")
	assert.Contains(t, string(body), "xtbhelper_cycle_duration_seconds")
}

func TestNewCollector_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)
	_, err = NewCollector(reg)
	assert.NoError(t, err)
}
