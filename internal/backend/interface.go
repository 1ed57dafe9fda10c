package backend

import (
	"context"

	"finanze/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the raw source, the optional snapshot store used as
// fallback, and a cleanup function
type BackendResult struct {
	Source sheets.Source
	// Snapshots is nil when the source is itself the snapshot or caching is off.
	Snapshots sheets.SnapshotStore
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Snapshot cache, also the source of the sqlite backend
	SQLiteDBPath    string
	SnapshotEnabled bool

	// Google Sheets specific
	GoogleSpreadsheetID string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
