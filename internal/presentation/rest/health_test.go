package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loanbook/internal/presentation/rest"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newMux(checks map[string]rest.Pinger, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	rest.NewHealthHandler("loanbook", checks, metrics, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(mux)
	return mux
}

func get(t *testing.T, mux *http.ServeMux, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthHandler_Liveness(t *testing.T) {
	mux := newMux(nil, nil)

	rec, body := get(t, mux, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "loanbook", body["service"])
}

func TestHealthHandler_Readiness(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		mux := newMux(map[string]rest.Pinger{
			"store": pingFunc(func(context.Context) error { return nil }),
		}, nil)

		rec, body := get(t, mux, "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", body["status"])
		assert.Equal(t, map[string]any{"store": "ok"}, body["checks"])
	})

	t.Run("one check fails", func(t *testing.T) {
		mux := newMux(map[string]rest.Pinger{
			"store": pingFunc(func(context.Context) error { return nil }),
			"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		}, nil)

		rec, body := get(t, mux, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "not_ready", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "ok", checks["store"])
		assert.Equal(t, "connection refused", checks["redis"])
	})

	t.Run("checks get a deadline", func(t *testing.T) {
		var hasDeadline bool
		mux := newMux(map[string]rest.Pinger{
			"store": pingFunc(func(ctx context.Context) error {
				_, hasDeadline = ctx.Deadline()
				return nil
			}),
		}, nil)

		get(t, mux, "/readyz")
		assert.True(t, hasDeadline)
	})
}

func TestHealthHandler_Metrics(t *testing.T) {
	t.Run("mounted", func(t *testing.T) {
		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "loanbook_reminders_sent_total 3\n")
		})
		rec, _ := get(t, newMux(nil, metrics), "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "loanbook_reminders_sent_total")
	})

	t.Run("absent without handler", func(t *testing.T) {
		rec, _ := get(t, newMux(nil, nil), "/metrics")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
