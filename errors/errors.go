package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseTransport Phase = "transport" // framing and socket I/O
	PhaseInvoke    Phase = "invoke"    // sandboxed execution
	PhaseSchedule  Phase = "schedule"  // pool routing decisions
	PhaseHost      Phase = "host"      // host-call bridge
	PhaseLoad      Phase = "load"      // code lookup and module loading
	PhaseBridge    Phase = "bridge"    // in-process envelope channels
	PhaseConfig    Phase = "config"    // configuration parsing
)

// Kind categorizes the error
type Kind string

const (
	KindIO                 Kind = "io"
	KindSerialize          Kind = "serialize"
	KindDeserialize        Kind = "deserialize"
	KindClientDisconnected Kind = "client_disconnected"
	KindServerDisconnected Kind = "server_disconnected"
	KindAppNotFound        Kind = "app_not_found"
	KindTrap               Kind = "trap"
	KindLoad               Kind = "load"
	KindInstantiation      Kind = "instantiation"
	KindEncoding           Kind = "encoding"
	KindUnsupported        Kind = "unsupported"
	KindPoolSaturated      Kind = "pool_saturated"
	KindShuttingDown       Kind = "shutting_down"
	KindBridgeClosed       Kind = "bridge_closed"
	KindProtocolViolation  Kind = "protocol_violation"
	KindInvalidInput       Kind = "invalid_input"
	KindNotFound           Kind = "not_found"
)

// Error is the structured error type used throughout zhur
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Owner  string
	App    string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Owner != "" || e.App != "" {
		b.WriteString(" for ")
		b.WriteString(e.Owner)
		b.WriteByte(':')
		b.WriteString(e.App)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// App sets the app identity the error concerns
func (b *Builder) App(owner, app string) *Builder {
	b.err.Owner = owner
	b.err.App = app
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HasKind reports whether err's chain contains an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// IsDisconnect reports whether err means the peer went away, as opposed to a
// corrupt message or a local failure.
func IsDisconnect(err error) bool {
	k := KindOf(err)
	return k == KindClientDisconnected || k == KindServerDisconnected
}

// Convenience constructors for common error patterns

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IO creates a transport I/O error
func IO(detail string, cause error) *Error {
	return Wrap(PhaseTransport, KindIO, cause, detail)
}

// Serialize creates a serialization error
func Serialize(what string, cause error) *Error {
	return Wrap(PhaseTransport, KindSerialize, cause, fmt.Sprintf("serialize %s", what))
}

// Deserialize creates a deserialization error
func Deserialize(what string, cause error) *Error {
	return Wrap(PhaseTransport, KindDeserialize, cause, fmt.Sprintf("deserialize %s", what))
}

// ClientDisconnected is reported by servers when the client went away
func ClientDisconnected(cause error) *Error {
	return Wrap(PhaseTransport, KindClientDisconnected, cause, "client disconnected")
}

// ServerDisconnected is reported by clients when the server went away
func ServerDisconnected(cause error) *Error {
	return Wrap(PhaseTransport, KindServerDisconnected, cause, "server disconnected")
}

// AppNotFound creates an error for an app the store does not know or has disabled
func AppNotFound(owner, app string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindAppNotFound,
		Owner:  owner,
		App:    app,
		Detail: "no such app",
	}
}

// Trap creates an execution trap error
func Trap(owner, app, description string) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindTrap,
		Owner:  owner,
		App:    app,
		Detail: description,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return Wrap(PhaseLoad, KindLoad, cause, detail)
}

// Instantiation creates a sandbox initialization error
func Instantiation(cause error) *Error {
	return Wrap(PhaseLoad, KindInstantiation, cause, "instantiate sandbox")
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// BridgeClosed is returned when the peer side of an envelope channel is gone
func BridgeClosed(what string) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindBridgeClosed,
		Detail: what,
	}
}

// ProtocolViolation marks a bug in the core itself, such as a reply channel
// consumed twice. Callers panic with it.
func ProtocolViolation(detail string) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindProtocolViolation,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Is forwards to the standard library so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As forwards to the standard library.
func As(err error, target any) bool {
	return errors.As(err, target)
}
