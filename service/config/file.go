package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// Settings mirrors the YAML settings file. Durations are Go duration strings
// ("300ms", "5s").
type Settings struct {
	ModeMaxShutdownTime      int      `yaml:"modeMaxShutdownTime"`
	BackendURL               string   `yaml:"backendUrl"`
	HTTPTimeout              string   `yaml:"httpTimeout"`
	CameraSource             string   `yaml:"cameraSource"`
	RecognizerSource         string   `yaml:"recognizerSource"`
	WebcamDevices            []string `yaml:"webcamDevices"`
	PollInterval             string   `yaml:"pollInterval"`
	PreviewInterval          string   `yaml:"previewInterval"`
	TickTimeout              string   `yaml:"tickTimeout"`
	ForwardCameraID          *bool    `yaml:"forwardCameraId"`
	MaxSessions              int      `yaml:"maxSessions"`
	DiscoveryPeriodicTimeout int      `yaml:"discoveryPeriodicTimeout"`
	MonitorPeriodicTimeout   int      `yaml:"monitorPeriodicTimeout"`
	LogLevel                 string   `yaml:"logLevel"`
	LogFile                  string   `yaml:"logFile"`
	JournalFolder            string   `yaml:"journalFolder"`
	ListenAddress            string   `yaml:"listenAddress"`
}

type fileService struct {
	modeMaxShutdownTime      int
	backendURL               string
	httpTimeout              time.Duration
	cameraSource             string
	recognizerSource         string
	webcamDevices            []string
	pollInterval             time.Duration
	previewInterval          time.Duration
	tickTimeout              time.Duration
	forwardCameraID          bool
	maxSessions              int
	discoveryPeriodicTimeout int
	monitorPeriodicTimeout   int
	logLevel                 string
	logFile                  string
	journalFolder            string
	listenAddress            string
}

// NewFile layers the YAML file at path (optional; an empty path or a missing
// file is fine) and then FR_* environment variables over the hardcoded
// defaults.
func NewFile(path string) (IService, error) {
	settings := Settings{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &settings); err != nil {
				return nil, xerrors.Errorf("parsing settings file %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// defaults + env only
		default:
			return nil, xerrors.Errorf("reading settings file %s: %w", path, err)
		}
	}

	applyEnv(&settings)
	return fromSettings(settings)
}

func fromSettings(s Settings) (IService, error) {
	def := NewHardCoded()
	svc := &fileService{
		modeMaxShutdownTime:      orInt(s.ModeMaxShutdownTime, def.GetModeMaxShutdownTime()),
		backendURL:               strings.TrimRight(orString(s.BackendURL, def.GetBackendURL()), "/"),
		cameraSource:             orString(s.CameraSource, def.GetCameraSource()),
		recognizerSource:         orString(s.RecognizerSource, def.GetRecognizerSource()),
		webcamDevices:            def.GetWebcamDevices(),
		forwardCameraID:          def.GetForwardCameraID(),
		maxSessions:              orInt(s.MaxSessions, def.GetMaxSessions()),
		discoveryPeriodicTimeout: orInt(s.DiscoveryPeriodicTimeout, def.GetDiscoveryPeriodicTimeout()),
		monitorPeriodicTimeout:   orInt(s.MonitorPeriodicTimeout, def.GetMonitorPeriodicTimeout()),
		logLevel:                 orString(s.LogLevel, def.GetLogLevel()),
		logFile:                  orString(s.LogFile, def.GetLogFile()),
		journalFolder:            orString(s.JournalFolder, def.GetJournalFolder()),
		listenAddress:            orString(s.ListenAddress, def.GetListenAddress()),
	}
	if len(s.WebcamDevices) > 0 {
		svc.webcamDevices = s.WebcamDevices
	}
	if s.ForwardCameraID != nil {
		svc.forwardCameraID = *s.ForwardCameraID
	}

	var err error
	if svc.httpTimeout, err = orDuration("httpTimeout", s.HTTPTimeout, def.GetHTTPTimeout()); err != nil {
		return nil, err
	}
	if svc.pollInterval, err = orDuration("pollInterval", s.PollInterval, def.GetPollInterval()); err != nil {
		return nil, err
	}
	if svc.previewInterval, err = orDuration("previewInterval", s.PreviewInterval, def.GetPreviewInterval()); err != nil {
		return nil, err
	}
	if svc.tickTimeout, err = orDuration("tickTimeout", s.TickTimeout, def.GetTickTimeout()); err != nil {
		return nil, err
	}

	switch svc.cameraSource {
	case SourceHTTP, SourceFake, SourceWebcam:
	default:
		return nil, xerrors.Errorf("unknown camera source %q", svc.cameraSource)
	}
	switch svc.recognizerSource {
	case SourceHTTP, SourceFake:
	default:
		return nil, xerrors.Errorf("unknown recognizer source %q", svc.recognizerSource)
	}

	return svc, nil
}

func applyEnv(s *Settings) {
	s.BackendURL = getEnv("FR_BACKEND_URL", s.BackendURL)
	s.HTTPTimeout = getEnv("FR_HTTP_TIMEOUT", s.HTTPTimeout)
	s.CameraSource = getEnv("FR_CAMERA_SOURCE", s.CameraSource)
	s.RecognizerSource = getEnv("FR_RECOGNIZER_SOURCE", s.RecognizerSource)
	s.PollInterval = getEnv("FR_POLL_INTERVAL", s.PollInterval)
	s.PreviewInterval = getEnv("FR_PREVIEW_INTERVAL", s.PreviewInterval)
	s.TickTimeout = getEnv("FR_TICK_TIMEOUT", s.TickTimeout)
	s.MaxSessions = getEnvAsInt("FR_MAX_SESSIONS", s.MaxSessions)
	s.ModeMaxShutdownTime = getEnvAsInt("FR_MODE_MAX_SHUTDOWN_TIME", s.ModeMaxShutdownTime)
	s.DiscoveryPeriodicTimeout = getEnvAsInt("FR_DISCOVERY_PERIOD", s.DiscoveryPeriodicTimeout)
	s.MonitorPeriodicTimeout = getEnvAsInt("FR_MONITOR_PERIOD", s.MonitorPeriodicTimeout)
	s.LogLevel = getEnv("FR_LOG_LEVEL", s.LogLevel)
	s.LogFile = getEnv("FR_LOG_FILE", s.LogFile)
	s.JournalFolder = getEnv("FR_JOURNAL_FOLDER", s.JournalFolder)
	s.ListenAddress = getEnv("FR_LISTEN_ADDRESS", s.ListenAddress)

	if value := os.Getenv("FR_WEBCAM_DEVICES"); value != "" {
		s.WebcamDevices = strings.Split(value, ",")
	}
	if value := os.Getenv("FR_FORWARD_CAMERA_ID"); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			s.ForwardCameraID = &b
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDuration(name, v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, xerrors.Errorf("invalid %s %q: %w", name, v, err)
	}
	if d <= 0 {
		return 0, xerrors.Errorf("invalid %s %q: must be positive", name, v)
	}
	return d, nil
}

func (svc *fileService) GetModeMaxShutdownTime() int       { return svc.modeMaxShutdownTime }
func (svc *fileService) GetBackendURL() string             { return svc.backendURL }
func (svc *fileService) GetHTTPTimeout() time.Duration     { return svc.httpTimeout }
func (svc *fileService) GetCameraSource() string           { return svc.cameraSource }
func (svc *fileService) GetRecognizerSource() string       { return svc.recognizerSource }
func (svc *fileService) GetWebcamDevices() []string        { return svc.webcamDevices }
func (svc *fileService) GetPollInterval() time.Duration    { return svc.pollInterval }
func (svc *fileService) GetPreviewInterval() time.Duration { return svc.previewInterval }
func (svc *fileService) GetTickTimeout() time.Duration     { return svc.tickTimeout }
func (svc *fileService) GetForwardCameraID() bool          { return svc.forwardCameraID }
func (svc *fileService) GetMaxSessions() int               { return svc.maxSessions }
func (svc *fileService) GetDiscoveryPeriodicTimeout() int  { return svc.discoveryPeriodicTimeout }
func (svc *fileService) GetMonitorPeriodicTimeout() int    { return svc.monitorPeriodicTimeout }
func (svc *fileService) GetLogLevel() string               { return svc.logLevel }
func (svc *fileService) GetLogFile() string                { return svc.logFile }
func (svc *fileService) GetJournalFolder() string          { return svc.journalFolder }
func (svc *fileService) GetListenAddress() string          { return svc.listenAddress }
