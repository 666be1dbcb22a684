package message

import "fmt"

// Invocation asks the core to run one app with one payload.
type Invocation struct {
	Owner   string `msgpack:"owner"`
	AppName string `msgpack:"app_name"`
	Payload []byte `msgpack:"payload"`
}

func (i Invocation) String() string {
	return fmt.Sprintf("%s:%s", i.Owner, i.AppName)
}

// Reply is the outcome of an invocation: Output on success, Err otherwise.
type Reply struct {
	Output []byte   `msgpack:"output,omitempty"`
	Err    *Failure `msgpack:"err,omitempty"`
}

// Success builds a successful reply.
func Success(output []byte) Reply {
	return Reply{Output: output}
}

// Failed builds a failed reply.
func Failed(kind FailureKind, detail string) Reply {
	return Reply{Err: &Failure{Kind: kind, Detail: detail}}
}

// OK reports whether the invocation succeeded.
func (r Reply) OK() bool {
	return r.Err == nil
}
