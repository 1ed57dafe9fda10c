package sheets

import (
	"context"
	"errors"
)

// ErrSheetNotFound is returned by readers when the requested sheet does not exist.
var ErrSheetNotFound = errors.New("sheet not found")

// Ports for raw spreadsheet sources.
type (
	// Reader yields the raw cell matrix of a sheet. The first row is the header.
	Reader interface {
		ReadSheet(ctx context.Context, name string) ([][]any, error)
	}

	// Lister reports which sheets a source currently holds.
	Lister interface {
		SheetNames(ctx context.Context) ([]string, error)
	}

	Source interface {
		Reader
		Lister
	}

	// SnapshotWriter keeps a copy of the last successfully read raw values.
	SnapshotWriter interface {
		SaveSnapshot(ctx context.Context, sheet string, values [][]any) error
	}

	// SnapshotStore serves saved copies back when the primary source fails.
	SnapshotStore interface {
		Reader
		SnapshotWriter
	}
)

// MatchName returns the entry of names equal to target ignoring case and
// surrounding spaces.
func MatchName(names []string, target string) (string, bool) {
	for _, n := range names {
		if equalName(n, target) {
			return n, true
		}
	}
	return "", false
}
