package inference

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/model"
)

// FakeConfig configures the fake recognizer.
type FakeConfig struct {
	// Delay simulates recognition time for the n-th call (1-based). Nil means none.
	Delay func(n int) time.Duration
	// Faces is returned with every result. Nil yields an empty list.
	Faces []model.RecognizedFace
	// Annotated makes the fake return an annotated frame derived from the snapshot.
	Annotated bool
	// FailAfter makes every call after the first N fail (0 = never fail).
	FailAfter int
}

// DefaultFakeConfig returns one known and one unknown face with annotated frames.
func DefaultFakeConfig() FakeConfig {
	roll := "CS-042"
	return FakeConfig{
		Delay: func(int) time.Duration { return 50 * time.Millisecond },
		Faces: []model.RecognizedFace{
			{Name: "Ada Lovelace", RollNumber: &roll, Similarity: 0.82, Confidence: 0.97, BBox: [4]int{40, 32, 140, 160}},
			{Name: model.UnknownName, Similarity: 0.21, Confidence: 0.88, BBox: [4]int{220, 40, 300, 150}},
		},
		Annotated: true,
	}
}

// FakeService records the camera ids it was called with.
type FakeService struct {
	cfg   FakeConfig
	calls atomic.Int64

	mu        sync.Mutex
	cameraIDs []string
}

func NewFake(cfg FakeConfig) *FakeService {
	return &FakeService{cfg: cfg}
}

func (svc *FakeService) Recognize(ctx context.Context, snapshot frame.Snapshot, cameraID string) (model.RecognitionResult, error) {
	n := int(svc.calls.Add(1))

	svc.mu.Lock()
	svc.cameraIDs = append(svc.cameraIDs, cameraID)
	svc.mu.Unlock()

	if svc.cfg.Delay != nil {
		if d := svc.cfg.Delay(n); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return model.RecognitionResult{}, ctx.Err()
			}
		}
	}

	if svc.cfg.FailAfter > 0 && n > svc.cfg.FailAfter {
		return model.RecognitionResult{}, fmt.Errorf("%w: fake failure after %d calls", model.ErrRecognitionService, svc.cfg.FailAfter)
	}

	result := model.RecognitionResult{
		Faces: append([]model.RecognizedFace{}, svc.cfg.Faces...),
	}
	if svc.cfg.Annotated {
		result.AnnotatedFrame = append([]byte("annotated-"), snapshot.Frame.Bytes()...)
	}
	return result, nil
}

func (svc *FakeService) Calls() int {
	return int(svc.calls.Load())
}

// CameraIDs returns the camera id passed with each call, in call order.
func (svc *FakeService) CameraIDs() []string {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]string(nil), svc.cameraIDs...)
}
