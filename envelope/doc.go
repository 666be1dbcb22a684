// Package envelope implements in-process request/reply over channels.
//
// A request travels inside an Envelope together with a private one-shot reply
// channel. A long-running actor consumes envelopes from a Channel and answers
// each through its own reply channel, so no other consumer can intercept a
// reply meant for a given caller.
//
//	ch := envelope.NewChannel[string, int](16)
//	go envelope.Serve(ctx, ch, func(_ context.Context, s string) int { return len(s) })
//	n := ch.Request("hello") // 5
//
// Replying twice to one envelope, or requesting over a closed channel with
// Request, panics: both indicate a bug in the surrounding code rather than a
// recoverable condition. Call is the context-aware form that returns an error
// of kind bridge_closed instead.
package envelope
