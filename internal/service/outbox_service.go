package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jengzang/runtrack-go/internal/logging"
	"github.com/jengzang/runtrack-go/internal/metrics"
	"github.com/jengzang/runtrack-go/internal/models"
)

const (
	defaultFlushInterval = 30 * time.Second
	defaultBatchSize     = 20
	maxRetryDelay        = time.Hour
)

// OutboxStore is the persistence the outbox service drains
type OutboxStore interface {
	Due(ctx context.Context, limit int) ([]models.OutboxEntry, error)
	List(ctx context.Context, limit int) ([]models.OutboxEntry, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause error, retryIn time.Duration) error
	Count(ctx context.Context) (int, error)
}

// RawSender posts an already encoded run payload
type RawSender interface {
	SaveRaw(ctx context.Context, body []byte) (*models.SavedRun, error)
}

// OutboxConfig configures the retry loop
type OutboxConfig struct {
	Interval  time.Duration
	BatchSize int
}

// FlushResult summarizes one pass over the outbox
type FlushResult struct {
	Delivered int      `json:"delivered"`
	Failed    int      `json:"failed"`
	Pending   int      `json:"pending"`
	RunIDs    []string `json:"runIds,omitempty"`
}

// OutboxService retries runs that could not be saved when their session stopped
type OutboxService struct {
	store  OutboxStore
	sender RawSender
	cfg    OutboxConfig
	log    zerolog.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(store OutboxStore, sender RawSender, cfg OutboxConfig) *OutboxService {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultFlushInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &OutboxService{
		store:  store,
		sender: sender,
		cfg:    cfg,
		log:    logging.With().Str("component", "outbox").Logger(),
	}
}

// Flush sends every due entry once. A failed entry is rescheduled with
// exponential backoff; the pass itself only fails on storage errors.
func (s *OutboxService) Flush(ctx context.Context) (*FlushResult, error) {
	entries, err := s.store.Due(ctx, s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load outbox: %w", err)
	}

	result := &FlushResult{}
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		saved, sendErr := s.sender.SaveRaw(ctx, entry.Payload)
		if sendErr != nil {
			delay := retryDelay(s.cfg.Interval, entry.Attempts+1)
			if err := s.store.MarkFailed(ctx, entry.ID, sendErr, delay); err != nil {
				return nil, err
			}
			result.Failed++
			s.log.Warn().Err(sendErr).
				Str("session", entry.SessionID).
				Int("attempts", entry.Attempts+1).
				Dur("retry_in", delay).
				Msg("queued run not delivered")
			continue
		}

		if err := s.store.MarkSent(ctx, entry.ID); err != nil {
			return nil, err
		}
		result.Delivered++
		result.RunIDs = append(result.RunIDs, saved.ID)
		metrics.OutboxDelivered.Inc()
		s.log.Info().Str("session", entry.SessionID).Str("run", saved.ID).Msg("queued run delivered")
	}

	pending, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	result.Pending = pending
	metrics.OutboxPending.Set(float64(pending))

	return result, nil
}

// List returns queued entries for inspection
func (s *OutboxService) List(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	entries, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	return entries, nil
}

// Serve implements suture.Service. It flushes once at start and then on
// every interval until ctx is done.
func (s *OutboxService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.Flush(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("outbox flush failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *OutboxService) String() string {
	return "outbox"
}

// retryDelay doubles base for every attempt after the first, capped at an hour
func retryDelay(base time.Duration, attempts int) time.Duration {
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
