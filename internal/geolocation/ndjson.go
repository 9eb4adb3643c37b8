package geolocation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/goccy/go-json"

	"github.com/jengzang/runtrack-go/internal/models"
)

// ndjsonRecord is one line of a device log. A line either carries a fix
// or an error object.
type ndjsonRecord struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
	Timestamp int64    `json:"timestamp"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NDJSONSource streams newline-delimited JSON position records, e.g. from a
// device bridge pipe or a recorded run. The channel is closed at end of input.
type NDJSONSource struct {
	open func() (io.ReadCloser, error)

	mu     sync.Mutex
	active bool
}

// NewFileSource replays a recorded log; every Watch reopens the file
func NewFileSource(path string) *NDJSONSource {
	return &NDJSONSource{open: func() (io.ReadCloser, error) { return os.Open(path) }}
}

// NewReaderSource streams from r. r is consumed by the first watch.
func NewReaderSource(r io.Reader) *NDJSONSource {
	return &NDJSONSource{open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil }}
}

// Watch implements Source
func (s *NDJSONSource) Watch(ctx context.Context, _ WatchOptions) (Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil, ErrWatchActive
	}

	rc, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open position log: %w", err)
	}
	s.active = true

	ctx, cancel := context.WithCancel(ctx)
	w := &ndjsonWatch{
		source: s,
		events: make(chan Event),
		cancel: cancel,
		rc:     rc,
	}
	go w.pump(ctx)
	return w, nil
}

type ndjsonWatch struct {
	source *NDJSONSource
	events chan Event
	cancel context.CancelFunc
	rc     io.ReadCloser
	once   sync.Once
}

func (w *ndjsonWatch) Events() <-chan Event {
	return w.events
}

// Close stops the pump. Closing the reader unblocks a pending read on
// pipes and files.
func (w *ndjsonWatch) Close() error {
	w.once.Do(func() {
		w.cancel()
		_ = w.rc.Close()

		w.source.mu.Lock()
		w.source.active = false
		w.source.mu.Unlock()
	})
	return nil
}

func (w *ndjsonWatch) pump(ctx context.Context) {
	defer close(w.events)

	dec := json.NewDecoder(w.rc)
	for {
		var rec ndjsonRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return
		}

		var ev Event
		switch {
		case err != nil:
			ev = Event{Err: &PositionError{Code: PositionUnavailable, Message: "unreadable position record"}}
		case rec.Error != nil:
			ev = Event{Err: &PositionError{Code: ErrorCode(rec.Error.Code), Message: rec.Error.Message}}
		case rec.Latitude == nil || rec.Longitude == nil:
			continue
		default:
			ev = Event{Fix: &models.GeoFix{
				Latitude:       *rec.Latitude,
				Longitude:      *rec.Longitude,
				AccuracyMeters: rec.Accuracy,
				TimestampMs:    rec.Timestamp,
			}}
		}

		select {
		case w.events <- ev:
		case <-ctx.Done():
			return
		}

		// the decoder cannot resync after a syntax error
		if err != nil {
			return
		}
	}
}
