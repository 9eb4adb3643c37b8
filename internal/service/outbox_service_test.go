package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/runtrack-go/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	entries []models.OutboxEntry
	delays  map[int64]time.Duration
	failErr error
}

func (m *memStore) Due(_ context.Context, limit int) ([]models.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	out := []models.OutboxEntry{}
	for _, e := range m.entries {
		if _, deferred := m.delays[e.ID]; deferred {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) List(_ context.Context, limit int) ([]models.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) < limit {
		limit = len(m.entries)
	}
	return append([]models.OutboxEntry(nil), m.entries[:limit]...), nil
}

func (m *memStore) MarkSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, id int64, cause error, retryIn time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delays == nil {
		m.delays = map[int64]time.Duration{}
	}
	m.delays[id] = retryIn
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Attempts++
			m.entries[i].LastError = cause.Error()
		}
	}
	return nil
}

func (m *memStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

type scriptedSender struct {
	mu    sync.Mutex
	fail  map[string]error
	calls int
}

func (s *scriptedSender) SaveRaw(_ context.Context, body []byte) (*models.SavedRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.fail[string(body)]; err != nil {
		return nil, err
	}
	return &models.SavedRun{ID: "run-" + string(body)}, nil
}

func TestOutboxFlushDeliversAndDefers(t *testing.T) {
	store := &memStore{entries: []models.OutboxEntry{
		{ID: 1, SessionID: "a", Payload: []byte("a")},
		{ID: 2, SessionID: "b", Payload: []byte("b"), Attempts: 2},
		{ID: 3, SessionID: "c", Payload: []byte("c")},
	}}
	sender := &scriptedSender{fail: map[string]error{"b": errors.New("502")}}
	svc := NewOutboxService(store, sender, OutboxConfig{Interval: time.Minute})

	result, err := svc.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Delivered)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Pending)
	assert.Equal(t, []string{"run-a", "run-c"}, result.RunIDs)

	// third attempt: base doubled twice
	assert.Equal(t, 4*time.Minute, store.delays[2])
	assert.Equal(t, 3, store.entries[0].Attempts)
	assert.Equal(t, "502", store.entries[0].LastError)

	// deferred entry is not retried on the next pass
	result, err = svc.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Delivered+result.Failed)
	assert.Equal(t, 3, sender.calls)
}

func TestOutboxFlushStoreError(t *testing.T) {
	store := &memStore{failErr: errors.New("disk gone")}
	svc := NewOutboxService(store, &scriptedSender{}, OutboxConfig{})

	_, err := svc.Flush(context.Background())
	assert.ErrorContains(t, err, "disk gone")
}

func TestRetryDelay(t *testing.T) {
	base := 30 * time.Second
	assert.Equal(t, base, retryDelay(base, 1))
	assert.Equal(t, time.Minute, retryDelay(base, 2))
	assert.Equal(t, 2*time.Minute, retryDelay(base, 3))
	assert.Equal(t, maxRetryDelay, retryDelay(base, 50))
}

func TestOutboxServeStopsOnCancel(t *testing.T) {
	store := &memStore{entries: []models.OutboxEntry{{ID: 1, SessionID: "a", Payload: []byte("a")}}}
	svc := NewOutboxService(store, &scriptedSender{}, OutboxConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	require.Eventually(t, func() bool {
		n, _ := store.Count(context.Background())
		return n == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestOutboxList(t *testing.T) {
	store := &memStore{entries: []models.OutboxEntry{{ID: 1}, {ID: 2}}}
	svc := NewOutboxService(store, &scriptedSender{}, OutboxConfig{})

	entries, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
