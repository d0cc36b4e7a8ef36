package finder

// pollState enumerates the outcomes of one polling iteration.
type pollState int

const (
	statePoll pollState = iota
	stateFound
	stateTimeout
	stateCancelled
)

func (s pollState) String() string {
	switch s {
	case statePoll:
		return "poll"
	case stateFound:
		return "found"
	case stateTimeout:
		return "timeout"
	case stateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
