package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coherence/internal/database"
)

type stubCounter struct {
	n   int
	err error
}

func (s stubCounter) Count(context.Context) (int, error) {
	return s.n, s.err
}

func memoryDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{Profile: database.ProfileMemory, Name: "runs"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func getStatus(t *testing.T, h *SystemHandlers) SystemStatusResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HandleSystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	log := zerolog.Nop()

	tests := []struct {
		name     string
		build    func(t *testing.T) *SystemHandlers
		validate func(t *testing.T, response SystemStatusResponse)
	}{
		{
			name: "without persistence",
			build: func(t *testing.T) *SystemHandlers {
				return NewSystemHandlers(log, nil, nil, 2)
			},
			validate: func(t *testing.T, response SystemStatusResponse) {
				assert.Equal(t, "healthy", response.Status)
				assert.False(t, response.Persistence)
				assert.Equal(t, 2, response.Workers)
				assert.Zero(t, response.StoredRuns)
			},
		},
		{
			name: "counter without database is ignored",
			build: func(t *testing.T) *SystemHandlers {
				return NewSystemHandlers(log, nil, stubCounter{n: 9}, 1)
			},
			validate: func(t *testing.T, response SystemStatusResponse) {
				assert.False(t, response.Persistence)
				assert.Zero(t, response.StoredRuns)
			},
		},
		{
			name: "reports stored runs",
			build: func(t *testing.T) *SystemHandlers {
				return NewSystemHandlers(log, memoryDB(t), stubCounter{n: 7}, 4)
			},
			validate: func(t *testing.T, response SystemStatusResponse) {
				assert.Equal(t, "healthy", response.Status)
				assert.True(t, response.Persistence)
				assert.Equal(t, 7, response.StoredRuns)
				assert.Empty(t, response.DatabaseError)
			},
		},
		{
			name: "count failure degrades",
			build: func(t *testing.T) *SystemHandlers {
				return NewSystemHandlers(log, memoryDB(t), stubCounter{err: errors.New("locked")}, 4)
			},
			validate: func(t *testing.T, response SystemStatusResponse) {
				assert.Equal(t, "degraded", response.Status)
				assert.Equal(t, "locked", response.DatabaseError)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := getStatus(t, tt.build(t))
			assert.Positive(t, response.Goroutines)
			assert.GreaterOrEqual(t, response.UptimeSeconds, 0.0)
			tt.validate(t, response)
		})
	}
}

func TestSystemHandlers_GetSystemStats(t *testing.T) {
	h := NewSystemHandlers(zerolog.Nop(), nil, nil, 1)
	cpuPercent, memPercent := h.getSystemStats()

	assert.GreaterOrEqual(t, cpuPercent, 0.0)
	assert.GreaterOrEqual(t, memPercent, 0.0)
	assert.LessOrEqual(t, memPercent, 100.0)
}
