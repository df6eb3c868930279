package pipeline

import (
	"context"
	"time"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/model"
)

// TickFunc is one scheduled poll. The context is cancelled when the poller
// stops.
type TickFunc func(ctx context.Context) error

// FrameEvent is published once per successful tick. Frame is owned by the
// session and only valid during the callback; observers that keep it must
// call Frame.Share.
type FrameEvent struct {
	SessionID  string
	CameraID   string
	Seq        uint64
	CapturedAt time.Time
	Frame      *frame.Handle
	Faces      []model.RecognizedFace
}

// Observer receives session output. Calls for one session never overlap.
// Observers must not call Session.Stop synchronously from a callback.
type Observer interface {
	OnFrame(event FrameEvent)
	OnError(err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil funcs are skipped.
type ObserverFuncs struct {
	FrameFunc func(event FrameEvent)
	ErrorFunc func(err error)
}

func (o ObserverFuncs) OnFrame(event FrameEvent) {
	if o.FrameFunc != nil {
		o.FrameFunc(event)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.ErrorFunc != nil {
		o.ErrorFunc(err)
	}
}

type multiObserver []Observer

// Observers fans every callback out to each observer in order.
func Observers(observers ...Observer) Observer {
	return multiObserver(observers)
}

func (m multiObserver) OnFrame(event FrameEvent) {
	for _, o := range m {
		o.OnFrame(event)
	}
}

func (m multiObserver) OnError(err error) {
	for _, o := range m {
		o.OnError(err)
	}
}
