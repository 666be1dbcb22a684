// Package engine runs waPC guest modules inside wazero sandboxes.
//
// # Architecture
//
//	Engine   - compiles guest code into sandboxes, one wazero runtime each
//	Sandbox  - an instantiated guest; Call runs one operation
//	Outcome  - the typed result of a call: output bytes or a trap
//
// # Guest Protocol
//
// Guests speak waPC: the host calls the exported __guest_call with the
// operation and payload lengths, the guest pulls both with __guest_request and
// answers through __guest_response or __guest_error. Guests reach the host
// through __host_call(binding, namespace, operation, payload), which is routed
// to the HostFunc given to Load.
//
// # Traps
//
// A trap is any abnormal end of a call: an unreachable instruction, a memory
// fault, a guest error, or a panic in a host function. Call never panics and
// never returns an error; the trap description is part of the Outcome.
//
// # Limits
//
// Config.MemoryLimitPages caps each sandbox's linear memory. A running call is
// never interrupted; there is no execution deadline.
package engine
