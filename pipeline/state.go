package pipeline

// State is the lifecycle of a recognition session.
type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the session can never run again.
func (s State) Terminal() bool {
	return s == Stopped || s == Failed
}

// Active reports whether the session holds its camera slot.
func (s State) Active() bool {
	return s == Running || s == Stopping
}
