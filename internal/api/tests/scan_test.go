package api_test

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/fzkn4/gate-security/internal/api/testutils"
	"github.com/fzkn4/gate-security/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scan(t *testing.T, testCtx *testutils.TestContext, token, payload string) *models.ScanResponse {
	t.Helper()

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/scan",
		models.ScanRequest{Payload: payload}, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.ScanResponse
	testutils.DecodeJSON(t, w, &resp)
	return &resp
}

func TestScanABC123InOutIn(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	vehicle := createVehicle(t, testCtx, testCtx.TestUserJWT, "ABC-123")

	first := scan(t, testCtx, testCtx.AdminJWT, vehicle.ScanPayload)
	assert.Equal(t, models.DirectionIn, first.Entry.Direction)
	assert.Equal(t, "Vehicle ABC-123 entered", first.Message)
	assert.Equal(t, "ABC-123", first.Entry.Plate)
	assert.Equal(t, "Test testuser", first.Entry.OwnerName)

	second := scan(t, testCtx, testCtx.AdminJWT, vehicle.ScanPayload)
	assert.Equal(t, models.DirectionOut, second.Entry.Direction)
	assert.Equal(t, "Vehicle ABC-123 exited", second.Message)

	third := scan(t, testCtx, testCtx.AdminJWT, vehicle.ScanPayload)
	assert.Equal(t, models.DirectionIn, third.Entry.Direction)
}

func TestScanErrors(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	adminVehicle := createVehicle(t, testCtx, testCtx.AdminJWT, "ADM-001")

	tests := []struct {
		name    string
		token   string
		payload string
		status  int
		code    string
	}{
		{"garbage", testCtx.AdminJWT, "garbage", http.StatusBadRequest, "MALFORMED_SCAN"},
		{"unknown vehicle", testCtx.AdminJWT, "VEHICLE:9999:NOPE", http.StatusNotFound, "NOT_FOUND"},
		{"other owner", testCtx.TestUserJWT, adminVehicle.ScanPayload, http.StatusForbidden, "FORBIDDEN"},
		{"stale plate", testCtx.AdminJWT, fmt.Sprintf("VEHICLE:%d:OLD-000", adminVehicle.ID), http.StatusBadRequest, "MALFORMED_SCAN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/scan",
				models.ScanRequest{Payload: tt.payload}, testutils.AuthHeaders(tt.token))
			assert.Equal(t, tt.status, w.Code)

			var resp models.ErrorResponse
			testutils.DecodeJSON(t, w, &resp)
			assert.Equal(t, tt.code, resp.Code)
		})
	}

	assert.Empty(t, testCtx.Store.Events())
}

func TestConcurrentScans(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	vehicle := createVehicle(t, testCtx, testCtx.TestUserJWT, "ABC-123")

	const numGoroutines = 20
	var wg sync.WaitGroup
	codes := make(chan int, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/scan",
				models.ScanRequest{Payload: vehicle.ScanPayload}, testutils.AuthHeaders(testCtx.AdminJWT))
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusCreated, code)
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/entries?per_page=200", nil,
		testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.EventsResponse
	testutils.DecodeJSON(t, w, &resp)
	require.Len(t, resp.Entries, numGoroutines)
	for i := 1; i < len(resp.Entries); i++ {
		assert.NotEqual(t, resp.Entries[i-1].Direction, resp.Entries[i].Direction)
	}
}

func TestEntriesAndStats(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	mine := createVehicle(t, testCtx, testCtx.TestUserJWT, "USR-001")
	other := createVehicle(t, testCtx, testCtx.AdminJWT, "ADM-001")
	scan(t, testCtx, testCtx.AdminJWT, mine.ScanPayload)
	scan(t, testCtx, testCtx.AdminJWT, mine.ScanPayload)
	scan(t, testCtx, testCtx.AdminJWT, other.ScanPayload)

	// Users only see entries of their own vehicles
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/entries", nil,
		testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code)
	var entries models.EventsResponse
	testutils.DecodeJSON(t, w, &entries)
	assert.Equal(t, int64(2), entries.Total)
	assert.Equal(t, 1, entries.Pages)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/entries?type=in&page=1&per_page=1", nil,
		testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)
	testutils.DecodeJSON(t, w, &entries)
	assert.Equal(t, int64(2), entries.Total)
	assert.Equal(t, 2, entries.Pages)
	assert.Len(t, entries.Entries, 1)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/entries?type=sideways", nil,
		testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/entries?page=abc", nil,
		testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/entries?page=92233720368547758&per_page=200", nil,
		testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/stats", nil,
		testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)
	var all models.StatsResponse
	testutils.DecodeJSON(t, w, &all)
	assert.Equal(t, int64(3), all.Stats.TotalEntries)
	assert.Equal(t, int64(2), all.Stats.EntriesIn)
	assert.Equal(t, int64(1), all.Stats.EntriesOut)
	assert.Equal(t, int64(3), all.Stats.TodayEntries)
	assert.Equal(t, int64(1), all.Stats.VehiclesInside)
	assert.Equal(t, int64(2), all.Stats.TotalVehicles)
	assert.Equal(t, "UTC", all.Stats.Timezone)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/stats", nil,
		testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code)
	var scoped models.StatsResponse
	testutils.DecodeJSON(t, w, &scoped)
	assert.Equal(t, int64(2), scoped.Stats.TotalEntries)
	assert.Equal(t, int64(0), scoped.Stats.VehiclesInside)
	assert.Equal(t, int64(1), scoped.Stats.TotalVehicles)
}
