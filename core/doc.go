// Package core wires a pool to the outside world.
//
// A Node serves Invocations and app store control events over the
// transport, and forwards the KV host calls of its executors to a KV
// backend, either a remote KV service or an in-process store.
package core
