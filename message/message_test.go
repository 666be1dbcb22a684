package message

import (
	"io"
	"reflect"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/zhur/errors"
)

func roundTrip[T any](t *testing.T, in T) {
	t.Helper()

	data, err := msgpack.Marshal(in)
	if err != nil {
		t.Fatalf("marshal %T: %v", in, err)
	}
	var out T
	if err := msgpack.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %T: %v", in, err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip %T:\n got %#v\nwant %#v", in, out, in)
	}
}

func TestRoundTrip(t *testing.T) {
	pairs := []KVPair{{Key: "a", Value: []byte("1")}, {Key: "b", Value: []byte("2")}}

	t.Run("Invocation", func(t *testing.T) {
		roundTrip(t, Invocation{Owner: "zhur", AppName: "echo", Payload: []byte{0, 1, 0xff}})
	})
	t.Run("Reply/success", func(t *testing.T) {
		roundTrip(t, Success([]byte("out")))
	})
	t.Run("Reply/failure", func(t *testing.T) {
		roundTrip(t, Failed(FailureTrap, "unreachable"))
	})
	t.Run("AppRequest", func(t *testing.T) {
		roundTrip(t, AppRequest{Owner: "nobody", AppName: "ghost"})
	})
	t.Run("AppReply/found", func(t *testing.T) {
		roundTrip(t, FoundCode([]byte("\x00asm"), EncodingBrotli, "1.2.0"))
	})
	t.Run("AppReply/missing", func(t *testing.T) {
		roundTrip(t, NoSuchApp())
	})
	t.Run("KVRequest", func(t *testing.T) {
		roundTrip(t, KVRequest{Op: KVSetMany, Owner: "zhur", Table: "t", Pairs: pairs})
	})
	t.Run("KVReply", func(t *testing.T) {
		roundTrip(t, KVReply{Found: true, Value: []byte("v"), Count: 2, Pairs: pairs})
	})
	t.Run("KVArgs", func(t *testing.T) {
		roundTrip(t, KVArgs{Table: "t", Key: "k", Value: []byte("v")})
	})
	t.Run("AppEvent", func(t *testing.T) {
		roundTrip(t, AppEvent{Kind: AppRename, Owner: "zhur", AppName: "a", NewName: "b"})
	})
	t.Run("Ack", func(t *testing.T) {
		roundTrip(t, Ack{OK: false, Err: "unknown event"})
	})
	t.Run("Identity", func(t *testing.T) {
		roundTrip(t, Identity{Owner: "zhur", AppName: "echo"})
	})
	t.Run("Timestamp", func(t *testing.T) {
		roundTrip(t, Timestamp{UnixNano: 1700000000000000000, RFC3339: "2023-11-14T22:13:20Z"})
	})
}

func TestFailure_Class(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want Class
	}{
		{FailureAppNotFound, ClassNotFound},
		{FailureTrap, ClassTrapped},
		{FailureLoad, ClassTrapped},
		{FailureTransport, ClassCommunication},
		{FailureMalformed, ClassCommunication},
		{FailurePoolSaturated, ClassUnavailable},
		{FailureShuttingDown, ClassUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := &Failure{Kind: tt.kind}
			if got := f.Class(); got != tt.want {
				t.Errorf("Class() = %v, want %v", got, tt.want)
			}
		})
	}

	var none *Failure
	if none.Class() != ClassNone {
		t.Error("nil failure should have no class")
	}
}

func TestFailureFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"not found", errors.AppNotFound("nobody", "ghost"), FailureAppNotFound},
		{"trap", errors.Trap("zhur", "boom", "unreachable"), FailureTrap},
		{"instantiation", errors.Instantiation(io.EOF), FailureLoad},
		{"disconnect", errors.ServerDisconnected(io.EOF), FailureTransport},
		{"saturated", errors.New(errors.PhaseSchedule, errors.KindPoolSaturated).Build(), FailurePoolSaturated},
		{"plain", io.ErrUnexpectedEOF, FailureTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FailureFromError(tt.err)
			if f.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", f.Kind, tt.want)
			}
			if f.Detail == "" {
				t.Error("Detail should carry the error text")
			}
		})
	}

	if FailureFromError(nil) != nil {
		t.Error("nil error should give nil failure")
	}
}
