// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay, dropping or blocking when full.
//   - [Event]: audit record with timestamp, type, member, request id, IP and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import memberAuth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
