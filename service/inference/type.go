package inference

import (
	"context"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/model"
)

// IService submits a snapshot for face recognition. cameraID may be empty;
// when set, the service can record attendance against that camera. Failures
// wrap model.ErrRecognitionService. The snapshot stays owned by the caller.
type IService interface {
	Recognize(ctx context.Context, snapshot frame.Snapshot, cameraID string) (model.RecognitionResult, error)
}
