package main

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/runtrack-go/internal/config"
	"github.com/jengzang/runtrack-go/internal/database"
)

func testConfig(t *testing.T, runsURL, dbPath string) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{Path: dbPath},
		Runs:     config.RunsConfig{URL: runsURL, Timeout: time.Second},
		Tracking: config.TrackingConfig{TickInterval: time.Second, LiveInterval: time.Second},
		Outbox:   config.OutboxConfig{Interval: time.Minute, BatchSize: 10},
	}
}

func TestBuildDepsQueueAndFlusherTogether(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runtrack.db")

	tests := []struct {
		name      string
		runsURL   string
		dbPath    string
		wantSaver bool
		wantQueue bool
	}{
		{"defaults without runs API", "", dbPath, false, false},
		{"runs API and outbox", "https://runs.example.com/api", dbPath, true, true},
		{"runs API without outbox", "https://runs.example.com/api", "", true, false},
		{"nothing configured", "", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opened := 0
			d, err := buildDeps(testConfig(t, tt.runsURL, tt.dbPath), func(path string) (*sql.DB, error) {
				opened++
				db, err := database.Open(path)
				if err == nil {
					t.Cleanup(func() { db.Close() })
				}
				return db, err
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantSaver, d.opts.Saver != nil)
			assert.Equal(t, tt.wantQueue, d.opts.Queue != nil)
			assert.Equal(t, d.opts.Queue != nil, d.outbox != nil, "queue without a flusher never retries")
			assert.Equal(t, tt.wantQueue, opened == 1)
			assert.NotNil(t, d.relay)
			assert.Same(t, d.relay, d.opts.Source)
		})
	}
}

func TestBuildDepsReplaySource(t *testing.T) {
	cfg := testConfig(t, "", "")
	cfg.Geolocation.ReplayPath = filepath.Join(t.TempDir(), "fixes.ndjson")

	d, err := buildDeps(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, d.relay)
	assert.NotNil(t, d.opts.Source)
}

func TestBuildDepsDatabaseError(t *testing.T) {
	boom := errors.New("disk full")
	_, err := buildDeps(testConfig(t, "https://runs.example.com/api", "x.db"), func(string) (*sql.DB, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
