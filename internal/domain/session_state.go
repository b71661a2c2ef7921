package domain

type SessionState int

const (
	SessionNoToken SessionState = iota
	SessionLoading
	SessionReady
	SessionError
)

// String representation (for logging and JSON responses)
func (s SessionState) String() string {
	switch s {
	case SessionNoToken:
		return "NO_TOKEN"
	case SessionLoading:
		return "LOADING"
	case SessionReady:
		return "READY"
	case SessionError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
