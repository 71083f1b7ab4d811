package domain

import (
	"errors"
	"fmt"
)

// TransitionOutcome tells the caller what to do with a requested status change.
type TransitionOutcome int

const (
	// TransitionApply means the record is pending and must move to the target.
	TransitionApply TransitionOutcome = iota + 1
	// TransitionReplay means the record already holds the target; return it unchanged.
	TransitionReplay
	// TransitionIgnore means the target carries no terminal information.
	TransitionIgnore
)

func (o TransitionOutcome) String() string {
	switch o {
	case TransitionApply:
		return "apply"
	case TransitionReplay:
		return "replay"
	case TransitionIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

var (
	// ErrContradictoryTransition marks an attempt to move a terminal record to a different terminal state.
	ErrContradictoryTransition = errors.New("contradictory terminal transition")
	// ErrInvalidInitialStatus marks an insert with a terminal status outside an instantaneous operation.
	ErrInvalidInitialStatus = errors.New("transactions must start pending")
)

// TransitionError carries both sides of a contradictory transition.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrContradictoryTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrContradictoryTransition
}

// ResolveTransition decides how a transaction in current reacts to target.
//
//	pending  -> terminal           apply
//	terminal -> same terminal      replay
//	any      -> pending/unknown    ignore
//	terminal -> other terminal     error
func ResolveTransition(current, target TransactionStatus) (TransitionOutcome, error) {
	if !target.IsTerminal() {
		return TransitionIgnore, nil
	}
	if current == TransactionStatusPending {
		return TransitionApply, nil
	}
	if current == target {
		return TransitionReplay, nil
	}
	return 0, &TransitionError{From: string(current), To: string(target)}
}

// ValidateInitialStatus enforces that new transactions start pending unless
// they record an instantaneous local operation.
func ValidateInitialStatus(status TransactionStatus, instantaneous bool) error {
	if status == TransactionStatusPending {
		return nil
	}
	if instantaneous && status == TransactionStatusSuccess {
		return nil
	}
	return fmt.Errorf("%w: got %s", ErrInvalidInitialStatus, status)
}
