package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/service/broadcast"
	"github.com/khaledhikmat/fr-attendance/service/camera"
	"github.com/khaledhikmat/fr-attendance/service/config"
	"github.com/khaledhikmat/fr-attendance/service/discovery"
	"github.com/khaledhikmat/fr-attendance/service/inference"
	"github.com/khaledhikmat/fr-attendance/service/journal"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

// ServicesFactory carries the services a mode processor needs. BroadcastSvc
// is optional.
type ServicesFactory struct {
	CfgSvc       config.IService
	CameraSvc    camera.IService
	InferenceSvc inference.IService
	DiscoverySvc discovery.IService
	JournalSvc   journal.IService
	BroadcastSvc broadcast.IService
}

type Processor func(canxCtx context.Context, svcs ServicesFactory) error

func procStats(journalSvc journal.IService, stats interface{}) {
	switch stats.(type) {
	case model.SessionStats, model.RegistryStats, model.MonitorStats:
		if err := journalSvc.RecordStats(stats); err != nil {
			lgr.Logger.Error(
				"failed to store stats",
				slog.Any("stats", stats),
				slog.Any("error", err),
			)
		}
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procError(journalSvc journal.IService, err interface{}) {
	errTemp := journalSvc.RecordError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}

func procFrame(journalSvc journal.IService, record model.FrameRecord) {
	if err := journalSvc.RecordFrame(record); err != nil {
		lgr.Logger.Error(
			"failed to store frame",
			slog.String("camera", record.Camera),
			slog.Any("error", err),
		)
	}
}
