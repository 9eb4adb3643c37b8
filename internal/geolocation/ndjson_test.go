package geolocation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"latitude":24.0,"longitude":82.0,"accuracy":10,"timestamp":0}
{"error":{"code":"timeout","message":"no fix within 10s"}}
{"note":"ignored"}
{"latitude":24.0001,"longitude":82.0,"accuracy":12.5,"timestamp":2000}
`

func collect(t *testing.T, w Watch) []Event {
	t.Helper()
	var events []Event
	for ev := range w.Events() {
		events = append(events, ev)
	}
	return events
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource(strings.NewReader(sampleLog))
	w, err := src.Watch(context.Background(), HighAccuracyContinuous)
	require.NoError(t, err)
	defer w.Close()

	events := collect(t, w)
	require.Len(t, events, 3)

	require.NotNil(t, events[0].Fix)
	assert.Equal(t, 24.0, events[0].Fix.Latitude)
	assert.Equal(t, 10.0, events[0].Fix.AccuracyMeters)

	require.NotNil(t, events[1].Err)
	assert.Equal(t, Timeout, events[1].Err.Code)
	assert.Equal(t, "no fix within 10s", events[1].Err.Message)

	require.NotNil(t, events[2].Fix)
	assert.Equal(t, int64(2000), events[2].Fix.TimestampMs)
}

func TestReaderSourceMalformed(t *testing.T) {
	src := NewReaderSource(strings.NewReader(`{"latitude":1,"longitude":2,"timestamp":5}
{not json`))
	w, err := src.Watch(context.Background(), HighAccuracyContinuous)
	require.NoError(t, err)
	defer w.Close()

	events := collect(t, w)
	require.Len(t, events, 2)
	assert.NotNil(t, events[0].Fix)
	require.NotNil(t, events[1].Err)
	assert.Equal(t, PositionUnavailable, events[1].Err.Code)
}

func TestFileSourceReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o600))

	src := NewFileSource(path)
	for i := 0; i < 2; i++ {
		w, err := src.Watch(context.Background(), HighAccuracyContinuous)
		require.NoError(t, err)

		_, err = src.Watch(context.Background(), HighAccuracyContinuous)
		assert.ErrorIs(t, err, ErrWatchActive)

		assert.Len(t, collect(t, w), 3)
		require.NoError(t, w.Close())
	}
}

func TestFileSourceMissing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.ndjson")).Watch(context.Background(), HighAccuracyContinuous)
	assert.Error(t, err)
}
