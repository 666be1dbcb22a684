// Package message defines the payloads that travel between zhur processes and
// between a sandboxed app and its host.
//
// Every type here is serialized with msgpack inside a transport frame. Field
// tags are part of the wire format and must not be renamed.
package message
