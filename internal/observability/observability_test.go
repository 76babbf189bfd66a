package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_AddsServerTiming(t *testing.T) {
	m := NewMetrics(nil)
	r := chi.NewRouter()
	r.Use(Middleware(m))
	r.Get("/api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		st := StartServerTiming(r.Context(), "db")
		st.Stop()
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/1", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, rec.Header().Get("Server-Timing"), "db")
}

func TestStartServerTiming_NoContextIsNoop(t *testing.T) {
	st := StartServerTiming(context.Background(), "db")
	assert.NotPanics(t, st.Stop)

	var nilMetric *ServerTimingMetric
	assert.NotPanics(t, nilMetric.Stop)
}

func TestRecorders_NoopProvider(t *testing.T) {
	m := NewMetrics(nil)
	assert.NotPanics(t, func() {
		m.RecordAccepted(context.Background(), "Web Development")
		m.RecordResolved(context.Background(), "done")
	})
}
