package cmd

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fr-attendance/mode"
	"github.com/khaledhikmat/fr-attendance/service/camera"
	"github.com/khaledhikmat/fr-attendance/service/config"
	"github.com/khaledhikmat/fr-attendance/service/discovery"
	"github.com/khaledhikmat/fr-attendance/service/inference"
	"github.com/khaledhikmat/fr-attendance/service/journal"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
	"github.com/khaledhikmat/fr-attendance/service/webcam"
)

// fakeCameras are served when the camera source is "fake".
var fakeCameras = []string{"cam1", "cam2", "cam3"}

func newCameraService(cfgSvc config.IService) (camera.IService, error) {
	switch cfgSvc.GetCameraSource() {
	case config.SourceHTTP:
		return camera.NewHTTP(cfgSvc), nil
	case config.SourceFake:
		return camera.NewFake(camera.FakeConfig{Cameras: fakeCameras}), nil
	case config.SourceWebcam:
		return webcam.New(cfgSvc), nil
	}
	return nil, xerrors.Errorf("unknown camera source %q", cfgSvc.GetCameraSource())
}

func newInferenceService(cfgSvc config.IService) (inference.IService, error) {
	switch cfgSvc.GetRecognizerSource() {
	case config.SourceHTTP:
		return inference.NewHTTP(cfgSvc), nil
	case config.SourceFake:
		return inference.NewFake(inference.DefaultFakeConfig()), nil
	}
	return nil, xerrors.Errorf("unknown recognizer source %q", cfgSvc.GetRecognizerSource())
}

// newServices builds the services a mode processor needs. The returned
// cleanup closes whatever holds files or devices.
func newServices(canxCtx context.Context, cfgSvc config.IService) (mode.ServicesFactory, func(), error) {
	cameraSvc, err := newCameraService(cfgSvc)
	if err != nil {
		return mode.ServicesFactory{}, nil, err
	}
	inferenceSvc, err := newInferenceService(cfgSvc)
	if err != nil {
		return mode.ServicesFactory{}, nil, err
	}
	journalSvc := journal.NewRotating(cfgSvc)

	cleanup := func() {
		if err := journalSvc.Close(); err != nil {
			lgr.Logger.Warn("error closing journal", slog.Any("error", err))
		}
		if closer, ok := cameraSvc.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				lgr.Logger.Warn("error closing camera source", slog.Any("error", err))
			}
		}
	}

	return mode.ServicesFactory{
		CfgSvc:       cfgSvc,
		CameraSvc:    cameraSvc,
		InferenceSvc: inferenceSvc,
		DiscoverySvc: discovery.NewTimed(canxCtx, cfgSvc, cameraSvc),
		JournalSvc:   journalSvc,
	}, cleanup, nil
}
