package mode

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/pipeline"
	"github.com/khaledhikmat/fr-attendance/service/camera"
	"github.com/khaledhikmat/fr-attendance/service/config"
	"github.com/khaledhikmat/fr-attendance/service/inference"
	"github.com/khaledhikmat/fr-attendance/service/journal"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name       string
		discovered []string
		current    map[string]pipeline.State
		want       plan
	}{
		{
			name:       "fresh cameras start",
			discovered: []string{"b", "a", "a"},
			current:    map[string]pipeline.State{},
			want:       plan{Start: []string{"a", "b"}},
		},
		{
			name:       "running sessions are left alone",
			discovered: []string{"a"},
			current:    map[string]pipeline.State{"a": pipeline.Running},
			want:       plan{},
		},
		{
			name:       "failed and stopped sessions restart",
			discovered: []string{"a", "b", "c"},
			current: map[string]pipeline.State{
				"a": pipeline.Failed,
				"b": pipeline.Stopped,
				"c": pipeline.Idle,
			},
			want: plan{Start: []string{"c"}, Restart: []string{"a", "b"}},
		},
		{
			name:       "vanished cameras are released",
			discovered: []string{"a"},
			current: map[string]pipeline.State{
				"a": pipeline.Stopping,
				"z": pipeline.Running,
				"y": pipeline.Failed,
			},
			want: plan{Release: []string{"y", "z"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reconcile(tt.discovered, tt.current); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("reconcile() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type stubDiscovery struct {
	rounds chan []string
}

func (d *stubDiscovery) Subscribe() (<-chan []string, error) { return d.rounds, nil }
func (d *stubDiscovery) Unsubscribe() error                  { return nil }

func TestMonitorRunsAndRestartsSessions(t *testing.T) {
	folder := t.TempDir()
	t.Setenv("FR_JOURNAL_FOLDER", folder)
	t.Setenv("FR_POLL_INTERVAL", "20ms")
	t.Setenv("FR_MODE_MAX_SHUTDOWN_TIME", "1")
	cfgSvc, err := config.NewFile("")
	if err != nil {
		t.Fatal(err)
	}

	cams := camera.NewFake(camera.FakeConfig{FailCameras: map[string]bool{"broken": true}})
	discovery := &stubDiscovery{rounds: make(chan []string)}
	journalSvc := journal.NewRotating(cfgSvc)
	defer journalSvc.Close()

	recognizer := inference.NewFake(inference.FakeConfig{
		Faces: []model.RecognizedFace{{Name: "Grace", Similarity: 0.9, Confidence: 0.9}},
	})

	svcs := ServicesFactory{
		CfgSvc:       cfgSvc,
		CameraSvc:    cams,
		InferenceSvc: recognizer,
		DiscoverySvc: discovery,
		JournalSvc:   journalSvc,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Monitor(ctx, svcs) }()

	discovery.rounds <- []string{"gate", "broken"}
	time.Sleep(150 * time.Millisecond)
	discovery.rounds <- []string{"gate", "broken"}
	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Monitor() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Monitor did not exit")
	}

	if got := cams.Fetches("broken"); got != 2 {
		t.Errorf("broken camera fetches = %d, want 2 (one per discovery round)", got)
	}
	if got := cams.Fetches("gate"); got < 3 {
		t.Errorf("gate fetches = %d, want a running session", got)
	}
	if got := cams.Outstanding(); got != 0 {
		t.Errorf("outstanding snapshots = %d after shutdown", got)
	}

	data, err := os.ReadFile(filepath.Join(folder, "recognitions.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"camera":"gate"`)) || bytes.Contains(data, []byte(`"camera":"broken"`)) {
		t.Errorf("recognitions journal = %s", data)
	}
	errorsLog, err := os.ReadFile(filepath.Join(folder, "errors.log"))
	if err != nil {
		t.Fatal(err)
	}
	if got := bytes.Count(errorsLog, []byte("\n")); got != 2 {
		t.Errorf("errors journal has %d lines, want 2", got)
	}
}

func TestMonitorRecordsStatsBetweenDiscoveryRounds(t *testing.T) {
	folder := t.TempDir()
	t.Setenv("FR_JOURNAL_FOLDER", folder)
	t.Setenv("FR_POLL_INTERVAL", "50ms")
	t.Setenv("FR_MONITOR_PERIOD", "1")
	t.Setenv("FR_MODE_MAX_SHUTDOWN_TIME", "1")
	cfgSvc, err := config.NewFile("")
	if err != nil {
		t.Fatal(err)
	}

	discovery := &stubDiscovery{rounds: make(chan []string)}
	journalSvc := journal.NewRotating(cfgSvc)
	defer journalSvc.Close()

	svcs := ServicesFactory{
		CfgSvc:       cfgSvc,
		CameraSvc:    camera.NewFake(camera.FakeConfig{}),
		InferenceSvc: inference.NewFake(inference.FakeConfig{}),
		DiscoverySvc: discovery,
		JournalSvc:   journalSvc,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Monitor(ctx, svcs) }()

	// Discovery rounds arrive well inside the stats period.
	for i := 0; i < 8; i++ {
		discovery.rounds <- []string{"lobby"}
		time.Sleep(300 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Monitor() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Monitor did not exit")
	}

	data, err := os.ReadFile(filepath.Join(folder, "stats.log"))
	if err != nil {
		t.Fatal(err)
	}
	// Shutdown adds one line of each kind; anything beyond that is periodic.
	if got := bytes.Count(data, []byte(`"kind":"monitor"`)); got < 2 {
		t.Errorf("monitor stats lines = %d, want periodic entries before shutdown:\n%s", got, data)
	}
	if got := bytes.Count(data, []byte(`"kind":"session"`)); got < 2 {
		t.Errorf("session stats lines = %d, want periodic entries before shutdown:\n%s", got, data)
	}
	if !bytes.Contains(data, []byte(`"state":"stopped"`)) {
		t.Errorf("final session stats missing stopped state:\n%s", data)
	}
}
