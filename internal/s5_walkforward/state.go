package s5_walkforward

// State of the per-ticker walk-forward loop
type State int

const (
	Initializing State = iota
	Training
	Testing
	Advancing
	Done
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Training:
		return "training"
	case Testing:
		return "testing"
	case Advancing:
		return "advancing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}
