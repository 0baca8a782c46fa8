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

	"github.com/glowdesk/automations/pkg/logger"
)

type stubChecker struct {
	err error
}

func (s stubChecker) Ping(ctx context.Context) error {
	return s.err
}

type stubJobQueue struct {
	count int64
	err   error
}

func (s stubJobQueue) CountPending(ctx context.Context) (int64, error) {
	return s.count, s.err
}

func TestReadyReportsQueueDepth(t *testing.T) {
	h := NewHealthHandler(logger.NewForTesting(), stubChecker{}, stubChecker{}, stubJobQueue{count: 7}, "1.2.3")

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["database"])
	assert.Equal(t, "healthy", resp.Checks["redis"])
	require.NotNil(t, resp.PendingJobs)
	assert.Equal(t, int64(7), *resp.PendingJobs)
}

func TestReadyUnavailableWhenDatabaseDown(t *testing.T) {
	h := NewHealthHandler(logger.NewForTesting(), stubChecker{err: errors.New("down")}, stubChecker{}, stubJobQueue{}, "1.2.3")

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not ready", resp.Status)
	assert.Equal(t, "unhealthy", resp.Checks["database"])
}

func TestReadyQueueCountFailureIsNotFatal(t *testing.T) {
	h := NewHealthHandler(logger.NewForTesting(), stubChecker{}, stubChecker{}, stubJobQueue{err: errors.New("timeout")}, "1.2.3")

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.PendingJobs)
}

func TestHealthOmitsChecks(t *testing.T) {
	h := NewHealthHandler(logger.NewForTesting(), stubChecker{}, stubChecker{}, nil, "1.2.3")

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Checks)
}
