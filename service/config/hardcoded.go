package config

import "time"

type hardcodedService struct {
}

func NewHardCoded() IService {
	return &hardcodedService{}
}

func (svc *hardcodedService) GetModeMaxShutdownTime() int {
	return 5
}

func (svc *hardcodedService) GetBackendURL() string {
	return "http://127.0.0.1:8000/api/v1"
}

func (svc *hardcodedService) GetHTTPTimeout() time.Duration {
	return 10 * time.Second
}

func (svc *hardcodedService) GetCameraSource() string {
	return SourceHTTP
}

func (svc *hardcodedService) GetRecognizerSource() string {
	return SourceHTTP
}

func (svc *hardcodedService) GetWebcamDevices() []string {
	return []string{"0"}
}

func (svc *hardcodedService) GetPollInterval() time.Duration {
	// The live recognition screen polled every 300ms, the monitoring
	// dashboard every 500ms. Both are just settings of this value.
	return 300 * time.Millisecond
}

func (svc *hardcodedService) GetPreviewInterval() time.Duration {
	return 2 * time.Second
}

func (svc *hardcodedService) GetTickTimeout() time.Duration {
	return 5 * time.Second
}

func (svc *hardcodedService) GetForwardCameraID() bool {
	return true
}

func (svc *hardcodedService) GetMaxSessions() int {
	return 16
}

func (svc *hardcodedService) GetDiscoveryPeriodicTimeout() int {
	return 10
}

func (svc *hardcodedService) GetMonitorPeriodicTimeout() int {
	return 30
}

func (svc *hardcodedService) GetLogLevel() string {
	return "info"
}

func (svc *hardcodedService) GetLogFile() string {
	return ""
}

func (svc *hardcodedService) GetJournalFolder() string {
	return "./journal"
}

func (svc *hardcodedService) GetListenAddress() string {
	return ""
}
