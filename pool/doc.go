// Package pool schedules invocations onto a bounded set of executors.
//
// For every envelope the pool refreshes each executor's free flag and then,
// in this order: forwards to the lowest-positioned free executor already
// holding the app; spawns a new executor while below MaxExecutors; replaces
// the code of the lowest-positioned free executor; or queues the envelope.
// Eviction is first-free, not least-recently-used.
//
// The queue holds at most MaxOutstanding envelopes; beyond that invocations
// are rejected with pool_saturated. Whenever an executor finishes, queued
// envelopes are routed again in arrival order.
//
// Code is resolved before any executor is touched, so an unknown app is
// answered with app_not_found and leaves the pool unchanged.
//
// There is no execution deadline: once dispatched, an invocation runs until
// it returns or traps.
package pool
