package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jengzang/runtrack-go/internal/geolocation"
	"github.com/jengzang/runtrack-go/internal/logging"
	"github.com/jengzang/runtrack-go/internal/metrics"
	"github.com/jengzang/runtrack-go/internal/models"
	"github.com/jengzang/runtrack-go/internal/stats"
)

// ErrInvalidTransition is wrapped by every lifecycle call made from the wrong state
var ErrInvalidTransition = errors.New("invalid session transition")

const defaultTickInterval = time.Second

// RunSaver is the run persistence API
type RunSaver interface {
	SaveRun(ctx context.Context, payload *models.RunPayload) (*models.SavedRun, error)
}

// RunQueue keeps runs the API refused so they can be retried later
type RunQueue interface {
	Enqueue(ctx context.Context, sessionID string, payload *models.RunPayload) error
}

// Options configures sessions. Source is required; Saver and Queue may be nil.
type Options struct {
	Source       geolocation.Source
	Saver        RunSaver
	Queue        RunQueue
	Clock        Clock
	TickInterval time.Duration
}

// Session is one run, from start to stop. All state is owned by a single
// goroutine that handles position events, the duration tick and lifecycle
// commands one at a time, so a fix is fully processed (filter, speed, route)
// before anything else touches the session.
type Session struct {
	id     string
	opts   Options
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	cmds  chan command
	done  chan struct{}
	final models.SessionSnapshot

	// loop-owned
	status    models.SessionStatus
	started   bool
	closing   bool
	filter    *GeoSampleFilter
	estimator *SpeedEstimator
	route     *RouteAccumulator
	clock     SessionClock
	speed     float64
	speeds    []float64
	duration  int64
	lastKnown *models.GeoFix
	warning   string
	watch     geolocation.Watch
	events    <-chan geolocation.Event
	ticker    *time.Ticker
	tickC     <-chan time.Time
}

type command struct {
	fn    func() error
	reply chan error
}

// NewSession creates an idle session. Close must be called if the session
// is never stopped.
func NewSession(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		opts:      opts,
		log:       logging.With().Str("session", id).Logger(),
		ctx:       ctx,
		cancel:    cancel,
		cmds:      make(chan command),
		done:      make(chan struct{}),
		status:    models.StatusIdle,
		filter:    NewGeoSampleFilter(),
		estimator: NewSpeedEstimator(),
		route:     NewRouteAccumulator(),
	}
	go s.loop()
	return s
}

// ID is the session's uuid
func (s *Session) ID() string {
	return s.id
}

// Start subscribes to the position stream and starts the clock. A stream
// that cannot be opened is reported as a warning; the session still starts.
func (s *Session) Start() error {
	return s.call("start", func() error {
		if s.status != models.StatusIdle {
			return transitionError("start", s.status)
		}

		s.filter = NewGeoSampleFilter()
		s.estimator = NewSpeedEstimator()
		s.route = NewRouteAccumulator()
		s.speed, s.duration, s.warning, s.lastKnown = 0, 0, "", nil
		s.speeds = nil
		s.clock.Start(s.now())

		watch, err := s.opts.Source.Watch(s.ctx, geolocation.HighAccuracyContinuous)
		if err != nil {
			s.warning = watchWarning(err)
			s.log.Warn().Err(err).Msg("position stream unavailable")
		} else {
			s.watch, s.events = watch, watch.Events()
		}

		s.ticker = time.NewTicker(s.opts.TickInterval)
		s.tickC = s.ticker.C
		s.status = models.StatusTracking
		s.started = true
		metrics.ActiveSessions.Inc()

		s.log.Info().Msg("tracking started")
		return nil
	})
}

// Pause freezes duration and stops fixes from reaching the route
func (s *Session) Pause() error {
	return s.call("pause", func() error {
		if s.status != models.StatusTracking {
			return transitionError("pause", s.status)
		}
		now := s.now()
		s.clock.Pause(now)
		s.duration = s.clock.Seconds(now)
		s.status = models.StatusPaused
		s.log.Info().Int64("duration_s", s.duration).Msg("tracking paused")
		return nil
	})
}

// Resume continues a paused session
func (s *Session) Resume() error {
	return s.call("resume", func() error {
		if s.status != models.StatusPaused {
			return transitionError("resume", s.status)
		}
		s.clock.Resume(s.now())
		s.status = models.StatusTracking
		s.log.Info().Msg("tracking resumed")
		return nil
	})
}

// Stop ends the session and tries to persist the run. The error is non-nil
// only for an invalid transition; persistence problems are reported in the
// summary, which always carries the locally computed stats.
func (s *Session) Stop(ctx context.Context) (*models.StopSummary, error) {
	var (
		snap   models.SessionSnapshot
		speeds []float64
	)
	err := s.call("stop", func() error {
		if s.status != models.StatusTracking && s.status != models.StatusPaused {
			return transitionError("stop", s.status)
		}
		s.duration = s.clock.Seconds(s.now())
		s.status = models.StatusStopped
		snap = s.snapshot()
		speeds = append([]float64(nil), s.speeds...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary := s.persist(ctx, snap)
	summary.Speed = stats.Summarize(speeds)
	return summary, nil
}

// Snapshot copies the current state
func (s *Session) Snapshot() models.SessionSnapshot {
	var snap models.SessionSnapshot
	if err := s.call("read", func() error {
		snap = s.snapshot()
		return nil
	}); err != nil {
		return s.final
	}
	return snap
}

// Active reports whether the session is tracking or paused
func (s *Session) Active() bool {
	st := s.Snapshot().Status
	return st == models.StatusTracking || st == models.StatusPaused
}

// Close tears the session down without persisting anything. It releases the
// position watch and the tick and is safe to call at any time.
func (s *Session) Close() {
	_ = s.call("close", func() error {
		s.closing = true
		return nil
	})
	<-s.done
}

// Done is closed once the session has released its resources
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) call(action string, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.cmds <- command{fn: fn, reply: reply}:
		return <-reply
	case <-s.done:
		return transitionError(action, s.final.Status)
	}
}

func (s *Session) loop() {
	defer close(s.done)

	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				s.events = nil
				s.warning = "Location stream ended."
				continue
			}
			s.handleEvent(ev)

		case <-s.tickC:
			if s.status == models.StatusTracking {
				s.duration = s.clock.Seconds(s.now())
			}

		case cmd := <-s.cmds:
			cmd.reply <- cmd.fn()
			if s.status == models.StatusStopped || s.closing {
				s.teardown()
				s.final = s.snapshot()
				return
			}
		}
	}
}

func (s *Session) teardown() {
	if s.status == models.StatusTracking || s.status == models.StatusPaused {
		s.duration = s.clock.Seconds(s.now())
	}
	s.status = models.StatusStopped
	if s.watch != nil {
		_ = s.watch.Close()
		s.watch, s.events = nil, nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker, s.tickC = nil, nil
	}
	s.cancel()

	if s.started {
		metrics.ActiveSessions.Dec()
		s.started = false
	}
}

func (s *Session) handleEvent(ev geolocation.Event) {
	switch {
	case ev.Err != nil:
		s.handlePositionError(ev.Err)
	case ev.Fix != nil:
		s.handleFix(*ev.Fix)
	}
}

func (s *Session) handleFix(fix models.GeoFix) {
	s.lastKnown = &fix

	// paused fixes only move the marker, but a poor one still warns
	if s.status != models.StatusTracking {
		if ok, warning := s.filter.Accept(fix); !ok {
			s.warning = warning
		}
		metrics.FixesProcessed.WithLabelValues("ignored").Inc()
		return
	}

	if ok, warning := s.filter.Accept(fix); !ok {
		s.warning = warning
		metrics.FixesProcessed.WithLabelValues("low_accuracy").Inc()
		s.log.Debug().Float64("accuracy_m", fix.AccuracyMeters).Msg("fix rejected")
		return
	}

	s.warning = ""
	s.speed = s.estimator.Update(fix)
	if s.estimator.Sampled() && s.speed > 0 {
		s.speeds = append(s.speeds, s.speed)
	}
	decision := s.route.Consider(fix, s.speed)
	metrics.FixesProcessed.WithLabelValues("accepted").Inc()

	if decision.Added {
		metrics.RoutePointsAdded.Inc()
		s.log.Debug().
			Float64("distance_km", decision.DistanceKm).
			Float64("speed_kmh", s.speed).
			Int("points", s.route.Len()).
			Msg("route point added")
	}
}

func (s *Session) handlePositionError(perr *geolocation.PositionError) {
	s.warning = perr.UserMessage()
	metrics.GeolocationErrors.WithLabelValues(string(perr.Code)).Inc()
	s.log.Warn().Err(perr).Msg("position stream error")
}

func (s *Session) snapshot() models.SessionSnapshot {
	if s.status == models.StatusTracking {
		s.duration = s.clock.Seconds(s.now())
	}

	snap := models.SessionSnapshot{
		SessionID:       s.id,
		Status:          s.status,
		Route:           s.route.Route(),
		DistanceKm:      s.route.DistanceKm(),
		DurationSeconds: s.duration,
		Calories:        s.route.Calories(),
		CurrentSpeedKmh: s.speed,
		Warning:         s.warning,
	}
	if started := s.clock.StartedAt(); !started.IsZero() {
		snap.StartedAt = &started
	}
	if s.lastKnown != nil {
		fix := *s.lastKnown
		snap.LastKnown = &fix
	}
	if heading, ok := s.route.Heading(); ok {
		snap.HeadingDeg = &heading
	}
	return snap
}

func (s *Session) persist(ctx context.Context, snap models.SessionSnapshot) *models.StopSummary {
	summary := &models.StopSummary{
		Session: snap,
		Pace:    Pace(snap.DistanceKm, snap.DurationSeconds),
	}
	summary.PathKm, summary.Bounds = routeGeometry(snap.Route)

	if !Saveable(snap.DistanceKm, len(snap.Route)) {
		summary.Outcome = models.OutcomeInsufficientData
		summary.Message = "Not enough data to save this run (insufficient data)."
		metrics.RunsFinished.WithLabelValues(string(summary.Outcome)).Inc()
		s.log.Info().
			Float64("distance_km", snap.DistanceKm).
			Int("points", len(snap.Route)).
			Msg("run not saved: insufficient data")
		return summary
	}

	payload := BuildPayload(snap.Route, snap.DistanceKm, snap.DurationSeconds, snap.Calories)
	summary.Payload = payload

	err := errors.New("no run persistence API configured")
	if s.opts.Saver != nil {
		var saved *models.SavedRun
		saved, err = s.opts.Saver.SaveRun(ctx, payload)
		if err == nil {
			summary.Outcome = models.OutcomeSaved
			summary.Message = "Run saved."
			if saved != nil {
				summary.RunID = saved.ID
			}
			metrics.RunsFinished.WithLabelValues(string(summary.Outcome)).Inc()
			s.log.Info().Str("run_id", summary.RunID).Float64("distance_km", payload.Distance).Msg("run saved")
			return summary
		}
	}

	summary.Outcome = models.OutcomeSaveFailed
	summary.Message = "Could not save to server. Your run stats are shown below."
	s.log.Error().Err(err).Float64("distance_km", payload.Distance).Msg("run save failed")

	if s.opts.Queue != nil {
		if qerr := s.opts.Queue.Enqueue(context.WithoutCancel(ctx), s.id, payload); qerr != nil {
			s.log.Error().Err(qerr).Msg("failed to queue run for retry")
		} else {
			summary.Queued = true
			summary.Message = "Could not save to server. The run is queued and will be retried."
		}
	}

	metrics.RunsFinished.WithLabelValues(string(summary.Outcome)).Inc()
	return summary
}

func (s *Session) now() time.Time {
	return s.opts.Clock.Now()
}

func transitionError(action string, from models.SessionStatus) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, from)
}

func watchWarning(err error) string {
	var perr *geolocation.PositionError
	if errors.As(err, &perr) {
		return perr.UserMessage()
	}
	return "Location unavailable: " + err.Error()
}
