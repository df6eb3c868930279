package discovery

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fr-attendance/service/camera"
	"github.com/khaledhikmat/fr-attendance/service/config"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

type timedService struct {
	CanxCtx   context.Context
	CameraSvc camera.IService
	Period    time.Duration

	mu            sync.Mutex
	subsCancel    context.CancelFunc
	cameraChannel chan []string
}

// NewTimed lists cameras right after Subscribe and then every discovery
// period, delivering each list on the subscription channel.
func NewTimed(canxCtx context.Context, cfgSvc config.IService, cameraSvc camera.IService) IService {
	return newTimed(canxCtx, cameraSvc, time.Duration(cfgSvc.GetDiscoveryPeriodicTimeout())*time.Second)
}

func newTimed(canxCtx context.Context, cameraSvc camera.IService, period time.Duration) *timedService {
	return &timedService{
		CanxCtx:   canxCtx,
		CameraSvc: cameraSvc,
		Period:    period,
	}
}

func (svc *timedService) Subscribe() (<-chan []string, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.subsCancel != nil {
		return nil, xerrors.New("discovery already subscribed. Unsubscribe first")
	}

	// One channel per service, reused across subscriptions
	if svc.cameraChannel == nil {
		svc.cameraChannel = make(chan []string, 1)
	}

	subsCtx, subsCancel := context.WithCancel(svc.CanxCtx)
	svc.subsCancel = subsCancel

	go svc.run(subsCtx, svc.cameraChannel)
	return svc.cameraChannel, nil
}

func (svc *timedService) run(ctx context.Context, out chan<- []string) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Debug("discovery subscription cancelled")
			return
		case <-timer.C:
			cameras, err := svc.CameraSvc.ListCameras(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				lgr.Logger.Warn(
					"camera discovery failed",
					slog.Any("error", err),
				)
			} else {
				cameras = slices.Clone(cameras)
				slices.Sort(cameras)
				cameras = slices.Compact(cameras)

				select {
				case out <- cameras:
				case <-ctx.Done():
					return
				}
			}
			timer.Reset(svc.Period)
		}
	}
}

func (svc *timedService) Unsubscribe() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.subsCancel == nil {
		return xerrors.New("discovery not subscribed. Subscribe first")
	}
	svc.subsCancel()
	svc.subsCancel = nil
	return nil
}
