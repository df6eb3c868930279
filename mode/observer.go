package mode

import (
	"log/slog"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/pipeline"
	"github.com/khaledhikmat/fr-attendance/service/broadcast"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

// sessionObserver journals frames, forwards them to viewers and hands errors
// to the processor loop without ever blocking the tick.
type sessionObserver struct {
	svcs        ServicesFactory
	processor   string
	errorStream chan<- interface{}
}

func newSessionObserver(svcs ServicesFactory, processor string, errorStream chan<- interface{}) pipeline.Observer {
	return &sessionObserver{
		svcs:        svcs,
		processor:   processor,
		errorStream: errorStream,
	}
}

func (o *sessionObserver) OnFrame(event pipeline.FrameEvent) {
	procFrame(o.svcs.JournalSvc, model.FrameRecord{
		SessionID:  event.SessionID,
		Camera:     event.CameraID,
		Seq:        event.Seq,
		CapturedAt: event.CapturedAt,
		Annotated:  event.Frame.Origin() == frame.OriginAnnotated,
		Faces:      event.Faces,
	})

	if o.svcs.BroadcastSvc != nil {
		// Broadcast marshals synchronously, so the borrowed bytes are safe here.
		o.svcs.BroadcastSvc.Broadcast(broadcast.Message{
			Type:        broadcast.MessageFrame,
			Camera:      event.CameraID,
			SessionID:   event.SessionID,
			Seq:         event.Seq,
			CapturedAt:  event.CapturedAt,
			ContentType: event.Frame.ContentType(),
			Image:       event.Frame.Bytes(),
			Faces:       event.Faces,
		})
	}
}

func (o *sessionObserver) OnError(err error) {
	if o.svcs.BroadcastSvc != nil {
		o.svcs.BroadcastSvc.Broadcast(broadcast.Message{
			Type:  broadcast.MessageError,
			Error: err.Error(),
		})
	}

	customErr := model.GenError(o.processor, err, map[string]interface{}{}, "recognition session failed")
	select {
	case o.errorStream <- customErr:
	default:
		lgr.Logger.Warn(
			"error stream full, dropping session error",
			slog.Any("error", err),
		)
	}
}
