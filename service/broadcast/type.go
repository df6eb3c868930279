package broadcast

import (
	"context"
	"net/http"
	"time"

	"github.com/khaledhikmat/fr-attendance/model"
)

const (
	MessageFrame = "frame"
	MessageError = "error"
)

// Message is what viewers receive. Image is base64 encoded by encoding/json.
type Message struct {
	Type        string                 `json:"type"`
	Camera      string                 `json:"camera"`
	SessionID   string                 `json:"sessionId,omitempty"`
	Seq         uint64                 `json:"seq,omitempty"`
	CapturedAt  time.Time              `json:"capturedAt,omitempty"`
	ContentType string                 `json:"contentType,omitempty"`
	Image       []byte                 `json:"image,omitempty"`
	Faces       []model.RecognizedFace `json:"faces,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// IService fans messages out to connected websocket viewers.
type IService interface {
	Run(ctx context.Context)
	ServeWS(w http.ResponseWriter, r *http.Request)
	// Broadcast never blocks; it reports false when the message was dropped.
	Broadcast(msg Message) bool
	ClientCount() int
}
