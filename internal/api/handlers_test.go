package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"solana-event-core/internal/health"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestHandleHealthz_ReturnsOKAndTrackedPrograms(t *testing.T) {
	reg := health.NewRegistry(30*time.Second, nil)
	reg.RecordMessage("prog1", time.Now())
	s := NewServer(reg, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp livenessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "ok", resp.Status)
	require.Contains(t, resp.Programs, "prog1")
}

func TestHandleProgramHealth_UnknownProgramReturns404(t *testing.T) {
	reg := health.NewRegistry(30*time.Second, nil)
	s := NewServer(reg, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health/nonexistent", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleProgramHealth_HealthyProgramReturns200(t *testing.T) {
	reg := health.NewRegistry(30*time.Second, nil)
	reg.RecordMessage("prog1", time.Now())
	s := NewServer(reg, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health/prog1", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap health.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.True(t, snap.Healthy)
}

func TestHandleProgramHealth_UnhealthyProgramReturns503(t *testing.T) {
	reg := health.NewRegistry(time.Second, nil)
	reg.RecordMessage("prog1", time.Now().Add(-10*time.Second))
	s := NewServer(reg, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health/prog1", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealthz_RejectsNonGET(t *testing.T) {
	reg := health.NewRegistry(30*time.Second, nil)
	s := NewServer(reg, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
