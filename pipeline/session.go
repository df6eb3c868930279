package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/service/camera"
	"github.com/khaledhikmat/fr-attendance/service/config"
	"github.com/khaledhikmat/fr-attendance/service/inference"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

const tracerName = "github.com/khaledhikmat/fr-attendance/pipeline"

type Option func(*Session)

func WithInterval(interval time.Duration) Option {
	return func(s *Session) { s.interval = interval }
}

// WithTickTimeout bounds one fetch+recognize round trip. Exceeding it fails
// the session.
func WithTickTimeout(timeout time.Duration) Option {
	return func(s *Session) { s.tickTimeout = timeout }
}

// WithForwardCameraID controls whether the camera id is sent along with each
// snapshot so the recognition service can record attendance.
func WithForwardCameraID(forward bool) Option {
	return func(s *Session) { s.forwardCameraID = forward }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Session) { s.tracer = tracer }
}

// Session drives the poll, fetch, recognize, render and publish cycle for one
// camera. A session runs at most once; Stopped and Failed are terminal.
type Session struct {
	id           string
	cameraID     string
	cameraSvc    camera.IService
	inferenceSvc inference.IService

	interval        time.Duration
	tickTimeout     time.Duration
	forwardCameraID bool
	tracer          trace.Tracer

	mu        sync.Mutex
	state     State
	observer  Observer
	poller    *Poller
	current   *frame.Handle
	seq       uint64
	startedAt time.Time
	endedAt   time.Time

	done     chan struct{}
	doneOnce sync.Once

	ticks          atomic.Int64
	frames         atomic.Int64
	faces          atomic.Int64
	failures       atomic.Int64
	roundTripNanos atomic.Int64
}

func NewSession(cfgSvc config.IService, cameraSvc camera.IService, inferenceSvc inference.IService, cameraID string, opts ...Option) *Session {
	s := &Session{
		id:              uuid.NewString(),
		cameraID:        cameraID,
		cameraSvc:       cameraSvc,
		inferenceSvc:    inferenceSvc,
		interval:        cfgSvc.GetPollInterval(),
		tickTimeout:     cfgSvc.GetTickTimeout(),
		forwardCameraID: cfgSvc.GetForwardCameraID(),
		tracer:          otel.Tracer(tracerName),
		state:           Idle,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CameraID() string {
	return s.cameraID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches Stopped or Failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start begins polling. Cancelling ctx stops the session the same way Stop
// does.
func (s *Session) Start(ctx context.Context, observer Observer) error {
	if s.cameraID == "" {
		return fmt.Errorf("%w: empty camera id", model.ErrInvalidInput)
	}
	if observer == nil {
		return fmt.Errorf("%w: nil observer", model.ErrInvalidInput)
	}

	s.mu.Lock()
	switch s.state {
	case Running, Stopping:
		s.mu.Unlock()
		return fmt.Errorf("%w: camera %s", model.ErrAlreadyRunning, s.cameraID)
	case Stopped, Failed:
		s.mu.Unlock()
		return fmt.Errorf("%w: camera %s is %s", model.ErrSessionClosed, s.cameraID, s.state)
	}

	poller := NewPoller(s.cameraID)
	if err := poller.Start(s.interval, s.tick); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = Running
	s.observer = observer
	s.poller = poller
	s.startedAt = time.Now()
	s.mu.Unlock()

	lgr.Logger.Info(
		"session started",
		slog.String("sessionID", s.id),
		slog.String("camera", s.cameraID),
		slog.Duration("interval", s.interval),
	)

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.Stop()
			case <-s.done:
			}
		}()
	}
	return nil
}

// Stop cancels polling, waits for an in-flight tick to finish (its result is
// discarded) and releases the displayed frame. Once Stop returns the observer
// receives no further calls. Stop is idempotent and must not be called from
// inside an observer callback.
func (s *Session) Stop() {
	s.mu.Lock()
	switch s.state {
	case Running:
		s.state = Stopping
	case Idle:
		s.state = Stopped
		s.endedAt = time.Now()
		s.mu.Unlock()
		s.finish()
		return
	}
	poller := s.poller
	s.mu.Unlock()

	if poller != nil {
		poller.Stop()
		poller.Wait()
	}

	s.mu.Lock()
	if s.state != Stopping {
		s.mu.Unlock()
		// Another Stop or a failure owns the teardown.
		<-s.done
		return
	}
	s.state = Stopped
	s.endedAt = time.Now()
	current := s.current
	s.current = nil
	s.mu.Unlock()

	current.Release()
	s.finish()

	lgr.Logger.Info(
		"session stopped",
		slog.String("sessionID", s.id),
		slog.String("camera", s.cameraID),
	)
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) tick(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "recognition.tick", trace.WithAttributes(
		attribute.String("camera", s.cameraID),
		attribute.String("session", s.id),
	))
	defer span.End()

	err := s.roundTrip(ctx)
	if err != nil && !errors.Is(err, model.ErrCancelled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Session) roundTrip(ctx context.Context) error {
	s.ticks.Add(1)
	ctx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()

	start := time.Now()
	snapshot, err := s.cameraSvc.FetchSnapshot(ctx, s.cameraID)
	if err != nil {
		return s.fail(s.classify(err, model.ErrSourceUnavailable))
	}

	forwardID := ""
	if s.forwardCameraID {
		forwardID = s.cameraID
	}
	result, err := s.inferenceSvc.Recognize(ctx, snapshot, forwardID)
	if err != nil {
		snapshot.Release()
		return s.fail(s.classify(err, model.ErrRecognitionService))
	}
	elapsed := time.Since(start)

	display := frame.Render(snapshot, result)
	snapshot.Release()
	if display == nil {
		return s.fail(fmt.Errorf("%w: nothing to display", model.ErrRecognitionService))
	}

	return s.publish(snapshot.CapturedAt, elapsed, display, result.Faces)
}

// classify maps a collaborator error onto the session's error taxonomy.
func (s *Session) classify(err error, kind error) error {
	if s.State() != Running {
		return fmt.Errorf("%w: %w", model.ErrCancelled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: tick timed out after %s: %w", kind, s.tickTimeout, err)
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// publish counts the round trip only when its frame is shown.
func (s *Session) publish(capturedAt time.Time, elapsed time.Duration, display *frame.Handle, faces []model.RecognizedFace) error {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		display.Release()
		return fmt.Errorf("%w: camera %s result discarded", model.ErrCancelled, s.cameraID)
	}
	previous := s.current
	s.current = display
	s.seq++
	seq := s.seq
	observer := s.observer
	s.mu.Unlock()

	previous.Release()

	s.roundTripNanos.Add(int64(elapsed))
	s.frames.Add(1)
	s.faces.Add(int64(len(faces)))
	if faces == nil {
		faces = []model.RecognizedFace{}
	}
	observer.OnFrame(FrameEvent{
		SessionID:  s.id,
		CameraID:   s.cameraID,
		Seq:        seq,
		CapturedAt: capturedAt,
		Frame:      display,
		Faces:      faces,
	})
	return nil
}

func (s *Session) fail(err error) error {
	if errors.Is(err, model.ErrCancelled) {
		return err
	}

	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", model.ErrCancelled, err)
	}
	s.state = Failed
	s.endedAt = time.Now()
	current := s.current
	s.current = nil
	observer := s.observer
	poller := s.poller
	s.mu.Unlock()

	// The failing tick is the in-flight one, so there is nothing to wait for.
	poller.Stop()
	current.Release()
	s.failures.Add(1)
	s.finish()

	lgr.Logger.Error(
		"session failed",
		slog.String("sessionID", s.id),
		slog.String("camera", s.cameraID),
		slog.Any("error", err),
	)
	observer.OnError(err)
	return err
}

func (s *Session) Stats() model.SessionStats {
	s.mu.Lock()
	state := s.state
	startedAt := s.startedAt
	endedAt := s.endedAt
	poller := s.poller
	s.mu.Unlock()

	stats := model.SessionStats{
		ID:        s.id,
		Camera:    s.cameraID,
		State:     state.String(),
		Ticks:     s.ticks.Load(),
		Frames:    s.frames.Load(),
		Faces:     s.faces.Load(),
		Errors:    s.failures.Load(),
		Timestamp: time.Now().Unix(),
	}
	if poller != nil {
		stats.DroppedTicks = poller.Stats().Dropped
	}
	if !startedAt.IsZero() {
		if endedAt.IsZero() {
			endedAt = time.Now()
		}
		stats.Uptime = endedAt.Unix() - startedAt.Unix()
	}
	if stats.Frames > 0 {
		stats.AvgRoundTrip = time.Duration(s.roundTripNanos.Load() / stats.Frames).Seconds()
	}
	return stats
}
