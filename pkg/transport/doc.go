// Package transport defines the shared contracts and middleware for the
// relay HTTP/SSE transport layer.
//
// The transport layer bridges external clients and the dispatch cascade.
// It deserializes incoming requests into the types defined in pkg/api,
// hands them to the dispatcher, and serializes results back as JSON or as
// a server-sent event stream.
//
// The HistoryStore interface defines the contract for conversation
// persistence; implementations live in pkg/storage/memory and
// pkg/storage/postgres. The HTTP adapter itself lives in
// pkg/transport/http.
//
// Middleware here is plain net/http middleware: panic recovery, request
// ID assignment (X-Request-ID), and structured logging via log/slog.
package transport
