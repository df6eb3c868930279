package mode

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/pipeline"
	"github.com/khaledhikmat/fr-attendance/service/camera"
	"github.com/khaledhikmat/fr-attendance/service/config"
	"github.com/khaledhikmat/fr-attendance/service/inference"
	"github.com/khaledhikmat/fr-attendance/service/journal"
)

func newLiveServices(t *testing.T, cams camera.IService) (ServicesFactory, string) {
	t.Helper()
	folder := t.TempDir()
	t.Setenv("FR_JOURNAL_FOLDER", folder)
	t.Setenv("FR_POLL_INTERVAL", "20ms")
	cfgSvc, err := config.NewFile("")
	if err != nil {
		t.Fatal(err)
	}

	journalSvc := journal.NewRotating(cfgSvc)
	t.Cleanup(func() { journalSvc.Close() })

	return ServicesFactory{
		CfgSvc:       cfgSvc,
		CameraSvc:    cams,
		InferenceSvc: inference.NewFake(inference.FakeConfig{}),
		JournalSvc:   journalSvc,
	}, folder
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.Count(data, []byte("\n"))
}

func TestLiveReturnsSessionFailure(t *testing.T) {
	cams := camera.NewFake(camera.FakeConfig{FailCameras: map[string]bool{"dock": true}})
	svcs, folder := newLiveServices(t, cams)

	var displayed []error
	display := pipeline.ObserverFuncs{ErrorFunc: func(err error) { displayed = append(displayed, err) }}

	done := make(chan error, 1)
	go func() { done <- Live("dock", display)(context.Background(), svcs) }()

	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Live did not return after the session failed")
	}

	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Fatalf("Live() error = %v, want ErrSourceUnavailable", err)
	}
	if len(displayed) != 1 {
		t.Errorf("display saw %d errors, want 1", len(displayed))
	}
	if got := cams.Fetches("dock"); got != 1 {
		t.Errorf("fetches = %d, a failed session must not keep polling", got)
	}
	if got := countLines(t, filepath.Join(folder, "errors.log")); got != 1 {
		t.Errorf("errors journal has %d lines, want 1", got)
	}
	if got := countLines(t, filepath.Join(folder, "stats.log")); got != 1 {
		t.Errorf("stats journal has %d lines, want 1", got)
	}
}

func TestLiveEndsQuietlyOnCancel(t *testing.T) {
	cams := camera.NewFake(camera.FakeConfig{})
	svcs, folder := newLiveServices(t, cams)

	frames := make(chan struct{}, 16)
	var failures []error
	display := pipeline.ObserverFuncs{
		FrameFunc: func(pipeline.FrameEvent) {
			select {
			case frames <- struct{}{}:
			default:
			}
		},
		ErrorFunc: func(err error) { failures = append(failures, err) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Live("lobby", display)(ctx, svcs) }()

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame displayed")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Live() error = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Live did not return after cancel")
	}

	if len(failures) != 0 {
		t.Errorf("failures = %v, cancellation must be silent", failures)
	}
	if got := cams.Outstanding(); got != 0 {
		t.Errorf("outstanding snapshots = %d after cancel", got)
	}

	data, err := os.ReadFile(filepath.Join(folder, "stats.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"kind":"session"`)) || !bytes.Contains(data, []byte(`"state":"stopped"`)) {
		t.Errorf("stats journal = %s, want a stopped session entry", data)
	}
}
