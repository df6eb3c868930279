package webcam

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/service/camera"
	"github.com/khaledhikmat/fr-attendance/service/config"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

type device struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
}

type webcamService struct {
	devices []string

	mu     sync.Mutex
	opened map[string]*device
}

// New captures snapshots from local video devices (indices or stream URLs)
// through OpenCV. Camera ids are the configured device names. Devices are
// opened on first use and kept open until Close.
func New(cfgSvc config.IService) camera.IService {
	return &webcamService{
		devices: cfgSvc.GetWebcamDevices(),
		opened:  map[string]*device{},
	}
}

func (svc *webcamService) ListCameras(_ context.Context) ([]string, error) {
	return slices.Clone(svc.devices), nil
}

func (svc *webcamService) FetchSnapshot(ctx context.Context, cameraID string) (frame.Snapshot, error) {
	if !slices.Contains(svc.devices, cameraID) {
		return frame.Snapshot{}, fmt.Errorf("webcam %s: %w: not configured", cameraID, model.ErrSourceUnavailable)
	}

	dev, err := svc.device(cameraID)
	if err != nil {
		return frame.Snapshot{}, fmt.Errorf("webcam %s: %w: %w", cameraID, model.ErrSourceUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return frame.Snapshot{}, err
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	img := gocv.NewMat()
	defer img.Close() // Crucial to close the image to avoid memory leaks

	if ok := dev.capture.Read(&img); !ok || img.Empty() {
		return frame.Snapshot{}, fmt.Errorf("webcam %s: %w: empty frame", cameraID, model.ErrSourceUnavailable)
	}
	capturedAt := time.Now()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return frame.Snapshot{}, fmt.Errorf("webcam %s: %w: %w", cameraID, model.ErrSourceUnavailable, err)
	}
	defer buf.Close()

	// The native buffer dies with Close, so the handle gets its own copy.
	data := append([]byte(nil), buf.GetBytes()...)
	return frame.Snapshot{
		CameraID:   cameraID,
		CapturedAt: capturedAt,
		Frame:      frame.NewHandle(data, frame.JPEGContentType, frame.OriginSnapshot, nil),
	}, nil
}

func (svc *webcamService) device(cameraID string) (*device, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if dev, ok := svc.opened[cameraID]; ok {
		return dev, nil
	}

	capture, err := gocv.OpenVideoCapture(cameraID)
	if err != nil {
		return nil, err
	}
	lgr.Logger.Info("webcam opened", slog.String("camera", cameraID))

	dev := &device{capture: capture}
	svc.opened[cameraID] = dev
	return dev, nil
}

// Close releases every opened device.
func (svc *webcamService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	for id, dev := range svc.opened {
		dev.mu.Lock()
		if err := dev.capture.Close(); err != nil {
			lgr.Logger.Warn("closing webcam", slog.String("camera", id), slog.Any("error", err))
		}
		dev.mu.Unlock()
		delete(svc.opened, id)
	}
	return nil
}
