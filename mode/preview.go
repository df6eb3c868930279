package mode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/pipeline"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

// PreviewFunc receives one preview result per camera tick. The snapshot is
// only valid during the call. Calls for different cameras may run
// concurrently.
type PreviewFunc func(cameraID string, snapshot frame.Snapshot, err error)

// Preview polls plain snapshots every preview interval without sending them
// for recognition. An empty cameraIDs previews every camera the source lists.
// A failed fetch is reported and polling carries on.
func Preview(cameraIDs []string, display PreviewFunc) Processor {
	return func(canxCtx context.Context, svcs ServicesFactory) error {
		ids := cameraIDs
		if len(ids) == 0 {
			var err error
			if ids, err = svcs.CameraSvc.ListCameras(canxCtx); err != nil {
				return err
			}
		}

		interval := svcs.CfgSvc.GetPreviewInterval()
		pollers := make([]*pipeline.Poller, 0, len(ids))
		defer func() {
			for _, poller := range pollers {
				poller.Stop()
			}
			for _, poller := range pollers {
				poller.Wait()
			}
		}()

		for _, id := range ids {
			poller := pipeline.NewPoller("preview-" + id)
			err := poller.Start(interval, func(ctx context.Context) error {
				snapshot, err := svcs.CameraSvc.FetchSnapshot(ctx, id)
				if err != nil {
					if ctx.Err() == nil {
						display(id, frame.Snapshot{}, err)
					}
					return err
				}
				defer snapshot.Release()

				display(id, snapshot, nil)
				return nil
			})
			if err != nil {
				return err
			}
			pollers = append(pollers, poller)
		}

		lgr.Logger.Info(
			"preview started",
			slog.Int("cameras", len(ids)),
			slog.Duration("interval", interval),
		)
		<-canxCtx.Done()
		return nil
	}
}

// PreviewConsole prints one line per snapshot.
func PreviewConsole(out io.Writer) PreviewFunc {
	var mu sync.Mutex
	return func(cameraID string, snapshot frame.Snapshot, err error) {
		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			errorColor.Fprintf(out, "[%s] snapshot failed: %v\n", cameraID, err)
			return
		}
		headerColor.Fprintf(out, "[%s %s]", cameraID, snapshot.CapturedAt.Format("15:04:05.000"))
		fmt.Fprintf(out, " %d bytes %s\n", snapshot.Frame.Len(), snapshot.Frame.ContentType())
	}
}
