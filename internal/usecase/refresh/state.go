package refresh

// State описывает стадию цикла обновления.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateGenerating
	StatePersisting
	StateCleaning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateGenerating:
		return "GENERATING"
	case StatePersisting:
		return "PERSISTING"
	case StateCleaning:
		return "CLEANING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
