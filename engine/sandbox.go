package engine

import (
	"context"
	"fmt"

	wapc "github.com/wapc/wapc-go"
	"go.uber.org/zap/zapio"
)

// Outcome is the result of one sandboxed call: Output when the call
// succeeded, a trap description otherwise.
type Outcome struct {
	Output  []byte
	Trap    string
	Trapped bool
}

// Success builds a successful outcome.
func Success(output []byte) Outcome {
	return Outcome{Output: output}
}

// Trapped builds a trap outcome.
func Trapped(description string) Outcome {
	return Outcome{Trap: description, Trapped: true}
}

// Sandbox is an instantiated guest. It is not safe for concurrent use.
type Sandbox interface {
	Call(ctx context.Context, op string, payload []byte) Outcome
	Close(ctx context.Context) error
}

type wapcSandbox struct {
	module   wapc.Module
	instance wapc.Instance
	flush    []*zapio.Writer
}

func (s *wapcSandbox) Call(ctx context.Context, op string, payload []byte) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Trapped(fmt.Sprintf("panic: %v", r))
		}
	}()

	res, err := s.instance.Invoke(ctx, op, payload)
	if err != nil {
		return Trapped(err.Error())
	}
	return Success(res)
}

func (s *wapcSandbox) Close(ctx context.Context) error {
	err := s.instance.Close(ctx)
	if merr := s.module.Close(ctx); err == nil {
		err = merr
	}
	for _, w := range s.flush {
		_ = w.Close()
	}
	return err
}
