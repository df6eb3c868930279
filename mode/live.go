package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/fr-attendance/pipeline"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

// Live runs a single recognition session for one camera until the context is
// cancelled or the session fails. A failure is returned to the caller, who
// decides whether to start again.
func Live(cameraID string, display pipeline.Observer) Processor {
	return func(canxCtx context.Context, svcs ServicesFactory) error {
		errorStream := make(chan interface{}, 1)
		failed := make(chan error, 1)

		session := pipeline.NewSession(svcs.CfgSvc, svcs.CameraSvc, svcs.InferenceSvc, cameraID)
		observer := pipeline.Observers(
			display,
			newSessionObserver(svcs, "live", errorStream),
			pipeline.ObserverFuncs{ErrorFunc: func(err error) { failed <- err }},
		)

		if err := session.Start(canxCtx, observer); err != nil {
			return err
		}

		var result error
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"live context cancelled",
				slog.String("camera", cameraID),
			)
			session.Stop()
		case result = <-failed:
		}

		select {
		case e := <-errorStream:
			procError(svcs.JournalSvc, e)
		default:
		}
		procStats(svcs.JournalSvc, session.Stats())
		return result
	}
}
