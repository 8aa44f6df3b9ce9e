package prometheus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry, registry)

	c.IncPredictionsServed()
	c.IncPredictionsServed()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.predictionsServed))

	c.SetUp(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.up))
	c.SetUp(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.up))

	c.RecordEventPublished("prediction.events", nil)
	c.RecordEventPublished("prediction.events", errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsPublished.WithLabelValues("prediction.events", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsPublished.WithLabelValues("prediction.events", "error")))

	c.ObserveHTTPRequest(http.MethodPost, "/predict", http.StatusOK, 2*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("POST", "/predict", "200")))
}

func TestCollectorHandler(t *testing.T) {
	registry := NewRegistry()
	c := NewCollector(registry, registry)
	c.IncPredictionsServed()

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "predictor_predictions_served_total 1"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestCollectorsAreIsolated(t *testing.T) {
	regA, regB := prometheus.NewRegistry(), prometheus.NewRegistry()
	a := NewCollector(regA, regA)
	b := NewCollector(regB, regB)

	a.IncPredictionsServed()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.predictionsServed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.predictionsServed))
}

func TestCollectorRejectsDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewCollector(registry, registry)

	assert.Panics(t, func() { NewCollector(registry, registry) })
}

func TestCollectorServesInjectedGatherer(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry, registry)

	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "extra_total", Help: "Extra counter"})
	registry.MustRegister(extra)
	extra.Inc()

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "extra_total 1")
	assert.NotContains(t, w.Body.String(), "go_goroutines")
}
