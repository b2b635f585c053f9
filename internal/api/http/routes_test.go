package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climatempo-relay/internal/scheduler"
	"github.com/i474232898/climatempo-relay/internal/store"
)

type fakeRuns struct {
	status *scheduler.RunStatus
}

func (f fakeRuns) LastRun() (scheduler.RunStatus, bool) {
	if f.status == nil {
		return scheduler.RunStatus{}, false
	}
	return *f.status, true
}

func (f fakeRuns) Skipped() int64 { return 2 }
func (f fakeRuns) Running() bool { return false }

func newTestApp(t *testing.T, runs RunSource) (*fiber.App, *store.ReportStore) {
	t.Helper()
	reports := store.NewReportStore(t.TempDir())
	app := NewApp()
	RegisterRoutes(app, runs, reports)
	return app, reports
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, fakeRuns{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLastRun(t *testing.T) {
	app, _ := newTestApp(t, fakeRuns{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/last", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	app, _ = newTestApp(t, fakeRuns{status: &scheduler.RunStatus{ID: "run-1"}})
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/last", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Run     scheduler.RunStatus `json:"run"`
		Skipped int64               `json:"skipped"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-1", body.Run.ID)
	assert.Equal(t, int64(2), body.Skipped)
}

// TestReportDateValidation verifies that the report endpoint requires a
// YYYY-MM-DD date and maps a missing file to 404.
func TestReportDateValidation(t *testing.T) {
	app, reports := newTestApp(t, fakeRuns{})

	for _, target := range []string{"/api/v1/reports", "/api/v1/reports?date=01/01/2024", "/api/v1/reports?date=2024-13-01"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports?date=2024-01-01", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	require.NoError(t, reports.AppendBlock(reports.PathFor(day), "* block\n"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports?date=2024-01-01", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "* block\n", string(body))
}
