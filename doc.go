// Package zhur is a serverless WebAssembly invocation core.
//
// Apps are waPC modules identified by (owner, app). An invocation travels
// from an edge (the HTTP gateway or zhur-invoke) to the core, which routes
// it onto a bounded pool of sandboxed executors and replies with the app's
// output or a classified failure.
//
// # Architecture Overview
//
//	zhur/
//	├── envelope/   Request plus private reply channel; the in-process RPC primitive
//	├── message/    Wire messages shared by every process
//	├── transport/  Length-prefixed msgpack frames over unix, tcp and quic
//	├── engine/     wazero + waPC sandboxes
//	├── executor/   One locked goroutine per sandbox, host calls
//	├── pool/       Routing decisions: Forward, SpawnNew, Replace, PutAway
//	├── core/       Invocation and control servers, KV forwarding
//	├── kv/         KV stores (SQLite, memory) and the KV service handler
//	├── appstore/   App directory, versions, watcher, client
//	├── gate/       HTTP edge
//	├── config/     ZHUR_* environment and logger construction
//	└── errors/     Structured error types
//
// # Processes
//
//	zhur-gate ──► zhur-core ──► zhur-apst   (code lookup)
//	                  │  ▲
//	                  │  └───── zhur-apst   (app change events)
//	                  └───────► zhur-kv     (KV host calls)
//
// Every hop is a request/reply round trip on a persistent connection.
package zhur
