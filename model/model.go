package model

import (
	"fmt"
	"runtime/debug"
	"time"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

// UnknownName is the name the recognition service assigns to unmatched faces.
const UnknownName = "Unknown"

type Camera struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// RecognizedFace is one identity reported by the recognition service.
// Duplicates within one result are legal.
type RecognizedFace struct {
	Name       string  `json:"name"`
	RollNumber *string `json:"rollNumber,omitempty"`
	Email      *string `json:"email,omitempty"`
	Similarity float64 `json:"similarity"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"` // x1, y1, x2, y2
}

func (f RecognizedFace) Known() bool {
	return f.Name != "" && f.Name != UnknownName
}

// RecognitionResult is what the recognition service returns for one snapshot.
// A nil AnnotatedFrame is a valid, expected state.
type RecognitionResult struct {
	AnnotatedFrame []byte           `json:"-"`
	Faces          []RecognizedFace `json:"faces"`
}

type FrameRecord struct {
	SessionID  string           `json:"sessionId"`
	Camera     string           `json:"camera"`
	Seq        uint64           `json:"seq"`
	CapturedAt time.Time        `json:"capturedAt"`
	Annotated  bool             `json:"annotated"`
	Faces      []RecognizedFace `json:"faces"`
	Timestamp  int64            `json:"timestamp"`
}

type SessionStats struct {
	ID           string  `json:"id"`
	Camera       string  `json:"camera"`
	State        string  `json:"state"`
	Ticks        int64   `json:"ticks"`
	DroppedTicks int64   `json:"droppedTicks"`
	Frames       int64   `json:"frames"`
	Faces        int64   `json:"faces"`
	Errors       int64   `json:"errors"`
	AvgRoundTrip float64 `json:"avgRoundTrip"` // seconds
	Uptime       int64   `json:"uptime"`
	Timestamp    int64   `json:"timestamp"`
}

type RegistryStats struct {
	TotalAcquired   int64 `json:"acquired"`
	TotalReleased   int64 `json:"released"`
	TotalRejected   int64 `json:"rejected"`
	RunningSessions int64 `json:"runningSessions"`
	FailedSessions  int64 `json:"failedSessions"`
	Timestamp       int64 `json:"timestamp"`
}

type MonitorStats struct {
	DiscoveryRounds int64   `json:"discoveryRounds"`
	Started         int64   `json:"started"`
	Restarted       int64   `json:"restarted"`
	Released        int64   `json:"released"`
	Unaccommodated  int64   `json:"unaccommodated"`
	Uptime          int64   `json:"uptime"`
	AvgSessions     float64 `json:"avgSessions"`
	Timestamp       int64   `json:"timestamp"`
}
