package webdrive

import (
	"fmt"
)

// Outcome is the result of applying one step of a multi-key operation.
// Err is nil when the step succeeded.
type Outcome struct {
	Key string // Object key the step acted on
	Dst string // Destination key for copy steps
	Err error
}

// PartialError reports a multi-key operation that failed part way through.
// Steps that already succeeded are not rolled back; Failed lists the ones
// that did not, so callers can retry just that subset.
type PartialError struct {
	PlanID string
	Op     string
	Failed []Outcome
	Total  int
}

func (e *PartialError) Error() string {
	if len(e.Failed) == 0 {
		return fmt.Sprintf("%s %s: partial failure", e.Op, e.PlanID)
	}
	return fmt.Sprintf("%s %s: %d of %d steps failed, first %q: %v",
		e.Op, e.PlanID, len(e.Failed), e.Total, e.Failed[0].Key, e.Failed[0].Err)
}

// Unwrap exposes the first failure so errors.Is/As see its kind
func (e *PartialError) Unwrap() error {
	if len(e.Failed) == 0 {
		return nil
	}
	return e.Failed[0].Err
}

// FailedKeys returns the source keys of every failed step
func (e *PartialError) FailedKeys() []string {
	keys := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		keys = append(keys, o.Key)
	}
	return keys
}
