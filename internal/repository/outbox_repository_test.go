package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/runtrack-go/internal/database"
	"github.com/jengzang/runtrack-go/internal/models"
)

func newTestRepo(t *testing.T) (*OutboxRepository, *time.Time) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Unix(1_700_000_000, 0)
	repo := NewOutboxRepository(db)
	repo.now = func() time.Time { return now }
	return repo, &now
}

func samplePayload(distance float64) *models.RunPayload {
	return &models.RunPayload{
		Distance:      distance,
		Duration:      600,
		Pace:          5,
		Calories:      150,
		Route:         geojson.NewGeometry(orb.LineString{{82, 24}, {82.001, 24.001}}),
		StartLocation: geojson.NewGeometry(orb.Point{82, 24}),
		EndLocation:   geojson.NewGeometry(orb.Point{82.001, 24.001}),
	}
}

func TestOutboxEnqueueAndDue(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, "s1", samplePayload(2)))
	require.NoError(t, repo.Enqueue(ctx, "s2", samplePayload(3)))

	due, err := repo.Due(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "s1", due[0].SessionID)
	assert.Equal(t, "s2", due[1].SessionID)

	var decoded models.RunPayload
	require.NoError(t, json.Unmarshal(due[0].Payload, &decoded))
	assert.Equal(t, 2.0, decoded.Distance)
	assert.Equal(t, int64(600), decoded.Duration)
}

func TestOutboxEnqueueReplacesSameSession(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, "s1", samplePayload(1)))
	require.NoError(t, repo.Enqueue(ctx, "s1", samplePayload(4)))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutboxMarkFailedDefersEntry(t *testing.T) {
	repo, now := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, "s1", samplePayload(1)))
	due, err := repo.Due(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, repo.MarkFailed(ctx, due[0].ID, errors.New("502 bad gateway"), time.Minute))

	due, err = repo.Due(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	all, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 1, all[0].Attempts)
	assert.Equal(t, "502 bad gateway", all[0].LastError)

	*now = now.Add(2 * time.Minute)
	due, err = repo.Due(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestOutboxMarkSent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, "s1", samplePayload(1)))
	due, err := repo.Due(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, repo.MarkSent(ctx, due[0].ID))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
