package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWriteJSONReport tests report serialization and directory creation.
func TestWriteJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")

	report := JSONReport{
		Name:       "portal-smoke",
		Host:       "http://localhost:3000",
		Mode:       "advanced",
		Population: "normal (70%), heavy (20%), statusChecker (10%)",
		Snapshot: Snapshot{
			TotalRequests:  10,
			FailedRequests: 2,
			FailureRate:    20.0,
		},
	}
	require.NoError(t, WriteJSONReport(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got JSONReport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "portal-smoke", got.Name)
	assert.Equal(t, int64(10), got.Snapshot.TotalRequests)
	assert.InDelta(t, 20.0, got.Snapshot.FailureRate, 0.001)
	assert.False(t, got.GeneratedAt.IsZero())
}

// TestWriteJSONReportTimestampPlaceholder tests {{.Timestamp}} expansion.
func TestWriteJSONReportTimestampPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-{{.Timestamp}}.json")

	generated := time.Date(2026, 8, 30, 12, 4, 5, 0, time.UTC)
	require.NoError(t, WriteJSONReport(path, JSONReport{GeneratedAt: generated}))

	want := filepath.Join(dir, "run-20260830-120405.json")
	_, err := os.Stat(want)
	assert.NoError(t, err)
}
