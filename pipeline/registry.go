package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/service/camera"
	"github.com/khaledhikmat/fr-attendance/service/config"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

// SessionFactory builds a fresh, idle session for a camera.
type SessionFactory func(cameraID string) *Session

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Registry keeps at most one active session per camera id. Operations on the
// same id are serialised. The shared map lock only guards bookkeeping and is
// never held while a session is built, started or stopped.
type Registry struct {
	factory     SessionFactory
	cameraSvc   camera.IService
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*keyedLock
	pending  int

	acquired atomic.Int64
	released atomic.Int64
	rejected atomic.Int64
}

func NewRegistry(cfgSvc config.IService, cameraSvc camera.IService, factory SessionFactory) *Registry {
	return &Registry{
		factory:     factory,
		cameraSvc:   cameraSvc,
		maxSessions: cfgSvc.GetMaxSessions(),
		sessions:    map[string]*Session{},
		locks:       map[string]*keyedLock{},
	}
}

func (r *Registry) lock(cameraID string) func() {
	r.mu.Lock()
	kl, ok := r.locks[cameraID]
	if !ok {
		kl = &keyedLock{}
		r.locks[cameraID] = kl
	}
	kl.refs++
	r.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		r.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(r.locks, cameraID)
		}
		r.mu.Unlock()
	}
}

// Acquire returns the camera's session while it is idle, running or
// stopping. Otherwise a fresh session replaces the terminal one.
func (r *Registry) Acquire(cameraID string) (*Session, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("%w: empty camera id", model.ErrInvalidInput)
	}

	unlock := r.lock(cameraID)
	defer unlock()

	r.mu.Lock()
	if s, ok := r.sessions[cameraID]; ok && !s.State().Terminal() {
		r.mu.Unlock()
		return s, nil
	}
	if r.maxSessions > 0 && r.held()+r.pending >= r.maxSessions {
		r.mu.Unlock()
		r.rejected.Add(1)
		return nil, fmt.Errorf("%w: %d sessions held", model.ErrCapacity, r.maxSessions)
	}
	// Reserve the slot while the session is built outside the map lock.
	r.pending++
	r.mu.Unlock()

	s := r.factory(cameraID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending--
	if s == nil {
		return nil, fmt.Errorf("%w: no session for camera %s", model.ErrInvalidInput, cameraID)
	}
	r.sessions[cameraID] = s
	r.acquired.Add(1)
	return s, nil
}

// held counts non-terminal sessions. Caller holds r.mu. Session state locks
// are leaf locks, so this never waits on a tick.
func (r *Registry) held() int {
	n := 0
	for _, s := range r.sessions {
		if !s.State().Terminal() {
			n++
		}
	}
	return n
}

// Get returns the stored session for a camera, whatever its state.
func (r *Registry) Get(cameraID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[cameraID]
	return s, ok
}

// States snapshots the state of every stored session.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make(map[string]State, len(r.sessions))
	for id, s := range r.sessions {
		states[id] = s.State()
	}
	return states
}

// Release stops and removes the camera's session. Unknown ids are ignored.
func (r *Registry) Release(cameraID string) {
	unlock := r.lock(cameraID)
	defer unlock()

	r.mu.Lock()
	s, ok := r.sessions[cameraID]
	r.mu.Unlock()
	if !ok {
		return
	}

	s.Stop()

	r.mu.Lock()
	delete(r.sessions, cameraID)
	r.mu.Unlock()
	r.released.Add(1)

	lgr.Logger.Debug(
		"session released",
		slog.String("camera", cameraID),
		slog.String("sessionID", s.ID()),
	)
}

// List yields the ids of running or stopping sessions in sorted order. The
// sequence is lazy: every iteration takes a fresh snapshot of the registry.
func (r *Registry) List() iter.Seq[string] {
	return func(yield func(string) bool) {
		r.mu.Lock()
		ids := make([]string, 0, len(r.sessions))
		for id, s := range r.sessions {
			if s.State().Active() {
				ids = append(ids, id)
			}
		}
		r.mu.Unlock()

		slices.Sort(ids)
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// Candidates enumerates cameras known to the camera source.
func (r *Registry) Candidates(ctx context.Context) ([]string, error) {
	return r.cameraSvc.ListCameras(ctx)
}

// Close releases every session.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Release(id)
		}(id)
	}
	wg.Wait()
}

func (r *Registry) Stats() model.RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := model.RegistryStats{
		TotalAcquired: r.acquired.Load(),
		TotalReleased: r.released.Load(),
		TotalRejected: r.rejected.Load(),
		Timestamp:     time.Now().Unix(),
	}
	for _, s := range r.sessions {
		switch s.State() {
		case Running:
			stats.RunningSessions++
		case Failed:
			stats.FailedSessions++
		}
	}
	return stats
}
