// Package appstore serves app code to the core.
//
// Store indexes a directory of modules, picks the highest semantic version
// of each app, honours .disabled markers and can watch the directory for
// changes. Modules may be stored brotli-compressed; they travel compressed and
// are decoded by the Client. Publisher pushes change events to a core.
package appstore
