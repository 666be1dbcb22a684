package errors

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindAppNotFound,
				Owner:  "nobody",
				App:    "ghost",
				Detail: "no such app",
			},
			contains: []string{"[load]", "app_not_found", "nobody:ghost", "no such app"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseTransport,
				Kind:  KindIO,
			},
			contains: []string{"[transport]", "io"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseTransport,
				Kind:   KindServerDisconnected,
				Detail: "server disconnected",
				Cause:  io.EOF,
			},
			contains: []string{"[transport]", "server_disconnected", "caused by", "EOF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := IO("read frame", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := Trap("zhur", "echo", "unreachable")

	if !errors.Is(err, &Error{Phase: PhaseInvoke, Kind: KindTrap}) {
		t.Error("Is should match same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseLoad, Kind: KindTrap}) {
		t.Error("Is should not match different phase")
	}
	if errors.Is(err, &Error{Phase: PhaseInvoke, Kind: KindLoad}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, &Error{Kind: KindTrap}) {
		t.Error("Is with empty phase should match on kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseSchedule, KindPoolSaturated).
		App("zhur", "counter").
		Cause(cause).
		Detail("queue holds %d envelopes", 4).
		Build()

	if err.Phase != PhaseSchedule {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseSchedule)
	}
	if err.Kind != KindPoolSaturated {
		t.Errorf("Kind = %v, want %v", err.Kind, KindPoolSaturated)
	}
	if err.Owner != "zhur" || err.App != "counter" {
		t.Errorf("identity = %s:%s", err.Owner, err.App)
	}
	if err.Detail != "queue holds 4 envelopes" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Cause != cause {
		t.Error("Cause not set")
	}
}

func TestKindHelpers(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ClientDisconnected(io.EOF))

	if got := KindOf(wrapped); got != KindClientDisconnected {
		t.Errorf("KindOf = %q", got)
	}
	if !IsDisconnect(wrapped) {
		t.Error("IsDisconnect should be true for client disconnect")
	}
	if IsDisconnect(Deserialize("reply", io.ErrUnexpectedEOF)) {
		t.Error("a corrupt message is not a disconnect")
	}
	if !HasKind(ServerDisconnected(nil), KindServerDisconnected) {
		t.Error("HasKind should match")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf of a plain error should be empty")
	}
}
