package message

import (
	"github.com/wippyai/zhur/errors"
)

// FailureKind is the user-visible category of a failed invocation.
type FailureKind string

const (
	FailureAppNotFound   FailureKind = "app_not_found"
	FailureTrap          FailureKind = "trap"
	FailureLoad          FailureKind = "load"
	FailureTransport     FailureKind = "transport"
	FailurePoolSaturated FailureKind = "pool_saturated"
	FailureShuttingDown  FailureKind = "shutting_down"
	FailureMalformed     FailureKind = "malformed"
)

// Class groups failure kinds into what an edge layer needs to know.
type Class int

const (
	ClassNone Class = iota
	// ClassNotFound: the app does not exist or is disabled.
	ClassNotFound
	// ClassTrapped: the app was found but failed while loading or running.
	ClassTrapped
	// ClassCommunication: a transport failure between processes, or a bad request.
	ClassCommunication
	// ClassUnavailable: the core is saturated or going away. Retry later.
	ClassUnavailable
)

func (c Class) String() string {
	switch c {
	case ClassNotFound:
		return "not_found"
	case ClassTrapped:
		return "trapped"
	case ClassCommunication:
		return "communication"
	case ClassUnavailable:
		return "unavailable"
	default:
		return "none"
	}
}

// Failure is the structured error carried in a Reply.
type Failure struct {
	Kind   FailureKind `msgpack:"kind"`
	Detail string      `msgpack:"detail,omitempty"`
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Detail
}

// Class maps the failure onto its edge-facing class.
func (f *Failure) Class() Class {
	if f == nil {
		return ClassNone
	}
	switch f.Kind {
	case FailureAppNotFound:
		return ClassNotFound
	case FailureTrap, FailureLoad:
		return ClassTrapped
	case FailurePoolSaturated, FailureShuttingDown:
		return ClassUnavailable
	default:
		return ClassCommunication
	}
}

// FailureFromError converts an internal error into the failure a caller sees.
// Errors that carry no kind are treated as transport failures.
func FailureFromError(err error) *Failure {
	if err == nil {
		return nil
	}

	var kind FailureKind
	switch errors.KindOf(err) {
	case errors.KindAppNotFound:
		kind = FailureAppNotFound
	case errors.KindTrap:
		kind = FailureTrap
	case errors.KindLoad, errors.KindInstantiation, errors.KindEncoding:
		kind = FailureLoad
	case errors.KindPoolSaturated:
		kind = FailurePoolSaturated
	case errors.KindShuttingDown:
		kind = FailureShuttingDown
	case errors.KindInvalidInput:
		kind = FailureMalformed
	default:
		kind = FailureTransport
	}
	return &Failure{Kind: kind, Detail: err.Error()}
}

// FromError builds a failed reply from err.
func FromError(err error) Reply {
	return Reply{Err: FailureFromError(err)}
}
