package pipeline

import (
	"fmt"
	"time"
)

// State is a session's position in the processing state machine:
// DISCOVERED → GROUPED → SYNCHRONIZED → ENCODED_L → ENCODED_R →
// COMPOSITED → CLEANED, or FAILED / SKIPPED from any step.
type State int

const (
	StateDiscovered State = iota
	StateGrouped
	StateSynchronized
	StateEncodedL
	StateEncodedR
	StateComposited
	StateCleaned
	StateFailed
	StateSkipped
)

var stateNames = [...]string{
	StateDiscovered:   "DISCOVERED",
	StateGrouped:      "GROUPED",
	StateSynchronized: "SYNCHRONIZED",
	StateEncodedL:     "ENCODED_L",
	StateEncodedR:     "ENCODED_R",
	StateComposited:   "COMPOSITED",
	StateCleaned:      "CLEANED",
	StateFailed:       "FAILED",
	StateSkipped:      "SKIPPED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state name in YAML reports.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// StageError names the state a session was trying to reach when it failed.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", stageLabel(e.Stage), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageLabel describes the work that leads into target.
func stageLabel(target State) string {
	switch target {
	case StateGrouped:
		return "plan"
	case StateSynchronized:
		return "synchronize"
	case StateEncodedL:
		return "encode L"
	case StateEncodedR:
		return "encode R"
	case StateComposited:
		return "composite"
	case StateCleaned:
		return "cleanup"
	}
	return target.String()
}

// SessionRecord is the outcome of one session.
type SessionRecord struct {
	ID      string        `yaml:"id"`
	State   State         `yaml:"state"`
	Stage   string        `yaml:"stage,omitempty"`   // Failing stage when State is FAILED.
	Error   string        `yaml:"error,omitempty"`   // Failure or skip reason.
	Missing []string      `yaml:"missing,omitempty"` // Empty slots of an incomplete session.
	Frames  int           `yaml:"frames,omitempty"`  // Common frame count.
	Codec   string        `yaml:"codec,omitempty"`
	Outputs []string      `yaml:"outputs,omitempty"`
	Bytes   int64         `yaml:"bytes,omitempty"` // Size of the final outputs.
	Elapsed time.Duration `yaml:"elapsed,omitempty"`

	Err error `yaml:"-"`
}

// Incomplete reports whether the session never had both sides complete.
func (r *SessionRecord) Incomplete() bool { return len(r.Missing) > 0 }

// fail records err against the stage leading into target.
func (r *SessionRecord) fail(target State, err error) {
	se := &StageError{Stage: target, Err: err}
	r.State = StateFailed
	r.Stage = stageLabel(target)
	r.Err = se
	r.Error = err.Error()
}

// skip records a non-failure stop.
func (r *SessionRecord) skip(reason string) {
	r.State = StateSkipped
	r.Error = reason
}
