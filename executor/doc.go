// Package executor runs one sandbox per actor goroutine.
//
// Each actor is pinned to an OS thread and processes its mailbox strictly in
// order: LoadCode, Rename, Invoke, Unload and Shutdown. The Executor handle is
// what the scheduler holds: a cached identity, a free flag refreshed by Poll,
// and the mailbox.
//
// An invocation always ends with a reply through its envelope followed by a
// done signal, also when the guest traps or the host panics. A failed load
// leaves the actor alive; later invocations fail with a load failure until
// new code arrives.
//
// Host calls available to guests:
//
//	("", "whoami")                  msgpack message.Identity
//	("internals", "whoami")         same as ("", "whoami")
//	("datetime", "now")             msgpack message.Timestamp, UTC
//	("", "datetime")                same as ("datetime", "now")
//	("kv", "get")                   message.KVArgs -> message.KVValue
//	("kv", "set"|"del"|"set_many")  message.KVArgs -> empty
//	("kv", "scan")                  message.KVArgs -> message.KVScanResult
//	("kv", "del_prefix")            message.KVArgs -> message.KVCount
//
// KV calls are bound to the actor's current owner and block the actor until
// the KV bridge replies. Anything else is an unsupported host error.
package executor
