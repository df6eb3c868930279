package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/model"
)

// FakeConfig configures the fake camera source.
type FakeConfig struct {
	// Cameras is what ListCameras returns.
	Cameras []string
	// Delay returns the simulated fetch latency for the n-th fetch (1-based)
	// of a camera. Nil means no delay.
	Delay func(cameraID string, n int) time.Duration
	// FailCameras always fail with ErrSourceUnavailable.
	FailCameras map[string]bool
}

// FakeService serves synthetic snapshots and keeps count of fetches and of
// snapshot buffers that have not been released yet.
type FakeService struct {
	cfg FakeConfig

	mu      sync.Mutex
	fetches map[string]int

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	outstanding atomic.Int64
}

func NewFake(cfg FakeConfig) *FakeService {
	return &FakeService{
		cfg:     cfg,
		fetches: map[string]int{},
	}
}

func (svc *FakeService) ListCameras(_ context.Context) ([]string, error) {
	return append([]string(nil), svc.cfg.Cameras...), nil
}

func (svc *FakeService) FetchSnapshot(ctx context.Context, cameraID string) (frame.Snapshot, error) {
	current := svc.inFlight.Add(1)
	defer svc.inFlight.Add(-1)
	for {
		seen := svc.maxInFlight.Load()
		if current <= seen || svc.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}

	svc.mu.Lock()
	svc.fetches[cameraID]++
	n := svc.fetches[cameraID]
	svc.mu.Unlock()

	if svc.cfg.Delay != nil {
		if d := svc.cfg.Delay(cameraID, n); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return frame.Snapshot{}, ctx.Err()
			}
		}
	}

	if svc.cfg.FailCameras[cameraID] {
		return frame.Snapshot{}, fmt.Errorf("camera %s: %w: fake failure", cameraID, model.ErrSourceUnavailable)
	}

	svc.outstanding.Add(1)
	data := []byte(fmt.Sprintf("snapshot-%s-%d", cameraID, n))
	return frame.Snapshot{
		CameraID:   cameraID,
		CapturedAt: time.Now(),
		Frame: frame.NewHandle(data, frame.JPEGContentType, frame.OriginSnapshot, func([]byte) {
			svc.outstanding.Add(-1)
		}),
	}, nil
}

// Fetches returns how many snapshots were requested for cameraID.
func (svc *FakeService) Fetches(cameraID string) int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.fetches[cameraID]
}

// Outstanding is the number of snapshot buffers not yet freed.
func (svc *FakeService) Outstanding() int64 {
	return svc.outstanding.Load()
}

// MaxInFlight is the highest number of concurrent fetches observed.
func (svc *FakeService) MaxInFlight() int64 {
	return svc.maxInFlight.Load()
}
