// Package transport implements the framed request/reply protocol used between
// zhur processes.
//
// Every message is an 8-byte big-endian length followed by that many bytes of
// msgpack. A connection carries an unbounded sequence of round trips with no
// pipelining. Readers accumulate partial reads; a peer that goes away is
// reported as client_disconnected or server_disconnected depending on which
// side noticed, so callers can tell it apart from a corrupt message.
//
// Endpoints are unix sockets, TCP or QUIC (one stream per logical connection).
package transport
