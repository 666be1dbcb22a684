// Package kv implements the key-value service app host calls reach.
//
// Keys are namespaced by owner and table; the owner always comes from the
// executor running the app, never from the app itself. SQLStore persists to
// SQLite through the pure-Go glebarez driver, MemoryStore is for tests and
// development. Handle maps a message.KVRequest onto a Store.
package kv
