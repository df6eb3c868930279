package mode

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/service/camera"
	"github.com/khaledhikmat/fr-attendance/service/config"
)

func TestPreviewPollsSnapshotsWithoutRecognition(t *testing.T) {
	t.Setenv("FR_PREVIEW_INTERVAL", "50ms")
	cfgSvc, err := config.NewFile("")
	if err != nil {
		t.Fatal(err)
	}
	cams := camera.NewFake(camera.FakeConfig{
		Cameras:     []string{"hall", "dark"},
		FailCameras: map[string]bool{"dark": true},
	})

	var mu sync.Mutex
	shown := map[string]int{}
	failed := map[string]int{}
	var stopped bool
	var late int
	display := func(cameraID string, snapshot frame.Snapshot, err error) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			late++
		}
		if err != nil {
			if !errors.Is(err, model.ErrSourceUnavailable) {
				t.Errorf("camera %s: error = %v", cameraID, err)
			}
			failed[cameraID]++
			return
		}
		if want := "snapshot-" + cameraID + "-"; !strings.HasPrefix(string(snapshot.Frame.Bytes()), want) {
			t.Errorf("camera %s: bytes = %q", cameraID, snapshot.Frame.Bytes())
		}
		shown[cameraID]++
	}

	// No recognizer: previews never reach the recognition service.
	svcs := ServicesFactory{CfgSvc: cfgSvc, CameraSvc: cams}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Preview(nil, display)(ctx, svcs) }()

	time.Sleep(180 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Preview() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Preview did not return after cancel")
	}

	mu.Lock()
	stopped = true
	if shown["hall"] < 2 {
		t.Errorf("hall snapshots = %d, want repeated polling", shown["hall"])
	}
	if failed["dark"] < 2 {
		t.Errorf("dark failures = %d, a failed fetch must not end the preview", failed["dark"])
	}
	mu.Unlock()

	time.Sleep(120 * time.Millisecond)
	mu.Lock()
	if late != 0 {
		t.Errorf("%d previews after Preview returned", late)
	}
	mu.Unlock()
	if got := cams.Outstanding(); got != 0 {
		t.Errorf("outstanding snapshots = %d", got)
	}
}

func TestPreviewConsole(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	show := PreviewConsole(&out)

	snapshot := frame.Snapshot{
		CameraID:   "hall",
		CapturedAt: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
		Frame:      frame.NewHandle([]byte("jpeg"), frame.JPEGContentType, frame.OriginSnapshot, nil),
	}
	defer snapshot.Release()
	show("hall", snapshot, nil)
	show("dark", frame.Snapshot{}, errors.New("offline"))

	got := out.String()
	for _, want := range []string{"[hall 09:30:00.000] 4 bytes image/jpeg", "[dark] snapshot failed: offline"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}
