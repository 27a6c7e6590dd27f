package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/integra/pkg/schema"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector("")
	require.NotNil(t, c)
	require.NotNil(t, c.Registry())
}

func TestCollector_Compiles(t *testing.T) {
	c := NewCollector("test")

	c.ObserveCompile("native", nil)
	c.ObserveCompile("native", nil)
	c.ObserveCompile("expr", schema.NewError(schema.ErrCodeInvalidExpression, "bad"))
	c.ObserveCompile("expr", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.compiles.WithLabelValues("native", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.compiles.WithLabelValues("expr", "client_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.compiles.WithLabelValues("expr", "error")))
}

func TestCollector_IntegrationsAndSamples(t *testing.T) {
	c := NewCollector("test")

	c.ObserveIntegration(3, 20*time.Millisecond, nil)
	c.ObserveIntegration(4, time.Millisecond, schema.NewError(schema.ErrCodeUnsupportedDimension, "4"))
	c.ObserveSamples(2, 121)
	c.ObserveSamples(2, 11)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.integrations.WithLabelValues("3", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.integrations.WithLabelValues("4", "client_error")))
	assert.Equal(t, 132.0, testutil.ToFloat64(c.samples.WithLabelValues("2")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.integrationTime))
}

func TestCollector_Store(t *testing.T) {
	c := NewCollector("test")

	c.ObserveRunSaved("http")
	c.ObserveRunSaved("")
	c.ObservePruned(5)
	c.ObservePruned(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsSaved.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsSaved.WithLabelValues("unknown")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.runsPruned))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	c.ObserveCompile("native", nil)
	c.ObserveIntegration(1, time.Second, nil)
	c.ObserveSamples(1, 10)
	c.ObserveRunSaved("cli")
	c.ObservePruned(3)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, c.InstrumentHandler(next))
	assert.NotNil(t, c.Handler())
}

func TestCollector_HTTP(t *testing.T) {
	c := NewCollector("test")
	h := c.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/runs/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, p := range []string{"/api/runs/a", "/api/runs/b", "/healthz"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/runs/:id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/healthz", "200")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestCanonicalPath(t *testing.T) {
	assert.Equal(t, "/api/solve", canonicalPath("/api/solve"))
	assert.Equal(t, "/api/presets/:id", canonicalPath("/api/presets/unit-ball"))
	assert.Equal(t, "/api/runs", canonicalPath("/api/runs"))
	assert.Equal(t, "/", canonicalPath("/"))
}
