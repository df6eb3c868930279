package lgr

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
)

// Logger is the process-wide structured logger.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

var fileSink *lumberjack.Logger

// Init replaces Logger. When file is not empty, records are also written to a
// rotating log file.
func Init(level string, file string) {
	var w io.Writer = os.Stderr
	if file != "" {
		fileSink = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7,    // days
			Compress:   true, // compress old logs
		}
		w = io.MultiWriter(os.Stderr, fileSink)
	}

	Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Close flushes and closes the rotating file sink, if any.
func Close() {
	if fileSink != nil {
		_ = fileSink.Close()
		fileSink = nil
	}
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
