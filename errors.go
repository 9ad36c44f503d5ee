package compose

import (
	"errors"
	"fmt"
)

// KeyCollisionError reports two sibling positions resolving to the same
// explicit key within one parent during one pass.
type KeyCollisionError struct {
	Parent NodeKey
	Key    string
}

func (e *KeyCollisionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("compose: explicit key %q used twice under parent %s", e.Key, e.Parent)
}

// TypeMismatchError reports a cached payload or input whose type differs from
// what the current execution expects at the same NodeKey. It indicates a
// non-deterministic or key-unstable content closure.
type TypeMismatchError struct {
	Key  NodeKey
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("compose: node %s: cached %s where %s expected", e.Key, e.Got, e.Want)
}

// StaleStateError reports a State setter or getter used after its owning node
// unmounted, or against a runtime that has been torn down.
type StaleStateError struct {
	Owner NodeKey
}

func (e *StaleStateError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("compose: state owner %s is no longer mounted", e.Owner)
}

// StaleSlotError reports a SubcomposeHandle used after its host node
// unmounted or its slot was evicted.
type StaleSlotError struct {
	Host NodeKey
	Slot SlotID
}

func (e *StaleSlotError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("compose: slot %d on host %s is no longer mounted", e.Slot, e.Host)
}

// PassError wraps any fault raised while a composition pass was running. The
// pass it annotates was rolled back in its entirety.
type PassError struct {
	PassID string
	Err    error
}

func (e *PassError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("compose: pass %s aborted: %v", e.PassID, e.Err)
}

func (e *PassError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// QueryError wraps failures from the diagnostics query engine.
type QueryError struct {
	Expr string
	Err  error
}

func (e *QueryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("compose: query expr=%q: %v", e.Expr, e.Err)
}

func (e *QueryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// passFault carries a contract violation up to the pass driver, which rolls
// the pass back and surfaces the error to the caller.
type passFault struct {
	err error
}

func fault(err error) {
	panic(passFault{err: err})
}

func wrapQueryError(expression string, err error) error {
	if err == nil {
		return nil
	}
	var qerr *QueryError
	if errors.As(err, &qerr) {
		return err
	}
	return &QueryError{Expr: expression, Err: err}
}
