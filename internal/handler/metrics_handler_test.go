package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/service"
)

func readyResponse(t *testing.T, deps map[string]Pinger) (int, map[string]interface{}) {
	t.Helper()
	r := newTestRouter(nil)
	h := NewMetricsHandler(service.NewMetricsService(), deps)
	r.GET("/ready", h.Ready)

	rec := serve(r, http.MethodGet, "/ready", nil)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestMetricsHandlerReadyAllHealthy(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })

	status, body := readyResponse(t, map[string]Pinger{"database": ok, "redis": ok})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, map[string]interface{}{"database": "ok", "redis": "ok"}, body["checks"])
}

func TestMetricsHandlerReadyDegraded(t *testing.T) {
	status, body := readyResponse(t, map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return nil }),
		"rabbitmq": PingFunc(func(context.Context) error { return errors.New("connection closed") }),
	})

	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "connection closed", checks["rabbitmq"])
}

func TestMetricsHandlerHealthAndPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordNotification(string(models.TemplateVisitReminder), service.NotificationSent)

	r := newTestRouter(nil)
	h := NewMetricsHandler(metrics, nil)
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Prometheus)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", nil).Code)

	rec := serve(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `template="VISIT_REMINDER"`)
}
