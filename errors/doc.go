// Package errors provides structured error types for the zhur invocation core.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Transport errors keep "peer went away" (client_disconnected, server_disconnected)
// apart from "corrupt message" (serialize, deserialize) and local I/O failure.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindAppNotFound).
//		App("nobody", "ghost").
//		Detail("app store has no code").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AppNotFound("nobody", "ghost")
//	err := errors.ServerDisconnected(io.EOF)
//
// All errors implement the standard error interface and support errors.Is/As.
// errors.Is matches on Phase and Kind; a target with an empty Phase matches any phase.
package errors
