package executor

import (
	"github.com/wippyai/zhur/envelope"
	"github.com/wippyai/zhur/message"
)

// InvocationEnvelope carries one invocation and its private reply channel.
type InvocationEnvelope = envelope.Envelope[message.Invocation, message.Reply]

// KVBridge is the channel host calls use to reach the KV service.
type KVBridge = envelope.Channel[message.KVRequest, message.KVReply]

// Msg is a message to an execution actor.
type Msg interface {
	isMsg()
}

// LoadCode replaces the loaded module and the actor's identity.
type LoadCode struct {
	Owner   string
	AppName string
	Code    []byte
}

// Rename changes the app name the actor reports. The module is kept.
type Rename struct {
	AppName string
}

// Invoke runs the entry operation with the envelope's payload.
type Invoke struct {
	Envelope *InvocationEnvelope
}

// Unload drops the module and clears the identity.
type Unload struct{}

// Shutdown closes the sandbox and ends the actor.
type Shutdown struct{}

func (LoadCode) isMsg() {}
func (Rename) isMsg()   {}
func (Invoke) isMsg()   {}
func (Unload) isMsg()   {}
func (Shutdown) isMsg() {}
