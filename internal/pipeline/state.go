package pipeline

import "fmt"

// State is a phase of a run.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateCleaning
	StateConfigLoading
	StateScoring
	StateAggregating
	StateEmitting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:          "Idle",
	StateLoading:       "Loading",
	StateCleaning:      "Cleaning",
	StateConfigLoading: "ConfigLoading",
	StateScoring:       "Scoring",
	StateAggregating:   "Aggregating",
	StateEmitting:      "Emitting",
	StateDone:          "Done",
	StateFailed:        "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether the run is over.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// PhaseError is a fatal failure of one phase.
type PhaseError struct {
	Phase State
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
