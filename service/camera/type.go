package camera

import (
	"context"

	"github.com/khaledhikmat/fr-attendance/frame"
)

// IService is the camera registry and snapshot source. FetchSnapshot failures
// wrap model.ErrSourceUnavailable. The caller owns the returned snapshot and
// must release it.
type IService interface {
	ListCameras(ctx context.Context) ([]string, error)
	FetchSnapshot(ctx context.Context, cameraID string) (frame.Snapshot, error)
}
