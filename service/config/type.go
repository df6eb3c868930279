package config

import "time"

const (
	SourceHTTP   = "http"
	SourceFake   = "fake"
	SourceWebcam = "webcam"
)

type IService interface {
	GetModeMaxShutdownTime() int
	GetBackendURL() string
	GetHTTPTimeout() time.Duration
	GetCameraSource() string
	GetRecognizerSource() string
	GetWebcamDevices() []string
	GetPollInterval() time.Duration
	GetPreviewInterval() time.Duration
	GetTickTimeout() time.Duration
	GetForwardCameraID() bool
	GetMaxSessions() int
	GetDiscoveryPeriodicTimeout() int
	GetMonitorPeriodicTimeout() int
	GetLogLevel() string
	GetLogFile() string
	GetJournalFolder() string
	GetListenAddress() string
}
