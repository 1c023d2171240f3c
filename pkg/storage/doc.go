// Package storage provides utilities shared across history store
// implementations, including sentinel errors.
//
// Store implementations (memory, postgres) satisfy the
// transport.HistoryStore interface defined in pkg/transport/store.go.
// This package contains only shared types and helpers, not the interface
// itself.
package storage
