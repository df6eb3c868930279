package model

import "golang.org/x/xerrors"

var (
	// ErrInvalidInput rejects a bad camera id or argument synchronously.
	ErrInvalidInput = xerrors.New("invalid input")
	// ErrAlreadyRunning rejects a duplicate start.
	ErrAlreadyRunning = xerrors.New("already running")
	// ErrSessionClosed rejects a start on a stopped or failed session.
	ErrSessionClosed = xerrors.New("session closed")
	// ErrCapacity rejects an acquire beyond the configured session cap.
	ErrCapacity = xerrors.New("session capacity reached")
	// ErrSourceUnavailable reports a snapshot fetch failure.
	ErrSourceUnavailable = xerrors.New("source unavailable")
	// ErrRecognitionService reports a recognition failure, malformed response or timeout.
	ErrRecognitionService = xerrors.New("recognition service error")
	// ErrCancelled marks a tick whose result was discarded after stop. Never surfaced.
	ErrCancelled = xerrors.New("cancelled")
)
