package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/service/config"
)

func newTestJournal(t *testing.T) (IService, string) {
	t.Helper()
	folder := t.TempDir()
	t.Setenv("FR_JOURNAL_FOLDER", folder)
	cfgSvc, err := config.NewFile("")
	if err != nil {
		t.Fatal(err)
	}
	svc := NewRotating(cfgSvc)
	t.Cleanup(func() { svc.Close() })
	return svc, folder
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestRecordFrameSkipsEmptyFrames(t *testing.T) {
	svc, folder := newTestJournal(t)

	if err := svc.RecordFrame(model.FrameRecord{Camera: "gate", Seq: 1}); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordFrame(model.FrameRecord{
		Camera: "gate",
		Seq:    2,
		Faces:  []model.RecognizedFace{{Name: "Grace", Similarity: 0.8}},
	}); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, filepath.Join(folder, recognitionsFile))
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(lines))
	}
	if lines[0]["camera"] != "gate" || lines[0]["seq"] != float64(2) {
		t.Errorf("line = %v", lines[0])
	}
	if lines[0]["timestamp"] == float64(0) {
		t.Error("timestamp not set")
	}
}

func TestRecordErrorAcceptsPlainAndCustomErrors(t *testing.T) {
	svc, folder := newTestJournal(t)

	if err := svc.RecordError(errors.New("plain")); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordError(model.GenError("monitor", errors.New("inner"), nil, "camera %s", "gate")); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordError(42); err == nil {
		t.Error("non-error value should be rejected")
	}

	lines := readLines(t, filepath.Join(folder, errorsFile))
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0]["processor"] != "N/A" || lines[0]["message"] != "plain" {
		t.Errorf("first line = %v", lines[0])
	}
	if lines[1]["processor"] != "monitor" || lines[1]["message"] != "camera gate" || lines[1]["innerError"] != "inner" {
		t.Errorf("second line = %v", lines[1])
	}
}

func TestRecordStatsTagsKind(t *testing.T) {
	svc, folder := newTestJournal(t)

	if err := svc.RecordStats(model.SessionStats{Camera: "gate", Frames: 3}); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordStats(model.MonitorStats{Started: 2}); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordStats("nope"); err == nil {
		t.Error("unknown stats type should be rejected")
	}

	lines := readLines(t, filepath.Join(folder, statsFile))
	if len(lines) != 2 || lines[0]["kind"] != "session" || lines[1]["kind"] != "monitor" {
		t.Errorf("lines = %v", lines)
	}
}
