package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/channels/{channel_id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "channel_id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200"))
	missBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404"))

	for _, id := range []string{"golang", "rust", "missing"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/channels/"+id, nil))
	}

	require.Equal(t, 2.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200"))-okBefore)
	require.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404"))-missBefore)
	// All three requests share one route series rather than one per channel id.
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
	hist := httpRequestDurationSeconds.WithLabelValues(http.MethodGet, "/api/channels/{channel_id}")
	require.NotNil(t, hist)
}
