package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type namedCheck struct {
	name string
	err  error
}

func (c namedCheck) Name() string                    { return c.name }
func (c namedCheck) Check(ctx context.Context) error { return c.err }

func TestHealth_Liveness(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
}

func TestHealth_ReadyAllPass(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(namedCheck{name: "storage"})
	h.RegisterCheck(namedCheck{name: "upstream"})

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Len(t, status.Checks, 2)
	assert.Equal(t, "pass", status.Checks["storage"].Status)
}

func TestHealth_ReadyOneFails(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(namedCheck{name: "storage"})
	h.RegisterCheck(namedCheck{name: "upstream", err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "fail", status.Checks["upstream"].Status)
	assert.Contains(t, status.Checks["upstream"].Message, "connection refused")
}

func TestHealth_Version(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleVersion("1.2.3", "2026-08-30", "abc123")(rec,
		httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "abc123", info["git_commit"])
}
