package journal

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/service/config"
)

const (
	recognitionsFile = "recognitions.log"
	errorsFile       = "errors.log"
	statsFile        = "stats.log"
)

type rotatingService struct {
	recognitions *lumberjack.Logger
	errors       *lumberjack.Logger
	stats        *lumberjack.Logger
}

// NewRotating writes JSON lines into rotating files under the journal folder.
func NewRotating(cfgSvc config.IService) IService {
	folder := cfgSvc.GetJournalFolder()
	return &rotatingService{
		recognitions: newLogger(filepath.Join(folder, recognitionsFile), 100),
		errors:       newLogger(filepath.Join(folder, errorsFile), 10),
		stats:        newLogger(filepath.Join(folder, statsFile), 10),
	}
}

func newLogger(filename string, maxSize int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSize, // MB
		MaxBackups: 5,
		MaxAge:     7,    // days
		Compress:   true, // compress old logs
	}
}

// RecordFrame keeps the attendance trail. Frames without faces are skipped.
func (svc *rotatingService) RecordFrame(record model.FrameRecord) error {
	if len(record.Faces) == 0 {
		return nil
	}
	record.Timestamp = time.Now().Unix()
	return writeLine(svc.recognitions, record)
}

func (svc *rotatingService) RecordError(err interface{}) error {
	// Determine if the error is custom
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case error:
		customErr = model.CustomError{
			Processor:  "N/A",
			Inner:      e,
			Message:    e.Error(),
			StackTrace: "N/A",
		}
	default:
		return xerrors.Errorf("unsupported error type %T", err)
	}

	inner := ""
	if customErr.Inner != nil {
		inner = customErr.Inner.Error()
	}
	entry := struct {
		Timestamp  int64                  `json:"timestamp"`
		Processor  string                 `json:"processor"`
		Inner      string                 `json:"innerError"`
		Message    string                 `json:"message"`
		StackTrace string                 `json:"stackTrace"`
		Misc       map[string]interface{} `json:"misc,omitempty"`
	}{
		Timestamp:  time.Now().Unix(),
		Processor:  customErr.Processor,
		Inner:      inner,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}
	return writeLine(svc.errors, entry)
}

func (svc *rotatingService) RecordStats(stats interface{}) error {
	now := time.Now().Unix()
	var kind string
	switch s := stats.(type) {
	case model.SessionStats:
		kind = "session"
		s.Timestamp = now
		stats = s
	case model.RegistryStats:
		kind = "registry"
		s.Timestamp = now
		stats = s
	case model.MonitorStats:
		kind = "monitor"
		s.Timestamp = now
		stats = s
	default:
		return xerrors.Errorf("unsupported stats type %T", stats)
	}

	return writeLine(svc.stats, struct {
		Kind  string      `json:"kind"`
		Stats interface{} `json:"stats"`
	}{kind, stats})
}

func (svc *rotatingService) Close() error {
	var first error
	for _, l := range []*lumberjack.Logger{svc.recognitions, svc.errors, svc.stats} {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func writeLine(w *lumberjack.Logger, entry interface{}) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return xerrors.Errorf("marshalling journal entry: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return xerrors.Errorf("writing %s: %w", w.Filename, err)
	}
	return nil
}
