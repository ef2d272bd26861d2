package reconcile

// State is the position of a run in its lifecycle.
//
//	Idle -> Authenticating -> Fetching -> Acknowledging -> Recording -> Done
//
// Authenticating and Fetching may jump straight to Done on failure.
type State int32

const (
	Idle State = iota
	Authenticating
	Fetching
	Acknowledging
	Recording
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Authenticating:
		return "authenticating"
	case Fetching:
		return "fetching"
	case Acknowledging:
		return "acknowledging"
	case Recording:
		return "recording"
	case Done:
		return "done"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
