package ledger

import (
	"context"
	"fmt"
)

// Stage flag column names. Each names one pipeline stage outcome recorded per
// video id.
const (
	FlagUploaded     = "uploaded"
	FlagTranslatedRU = "translated_ru"
	FlagTranslatedAR = "translated_ar"
	FlagDelivered    = "delivered"
)

const idColumn = "video_id"

var flagColumns = []string{FlagUploaded, FlagTranslatedRU, FlagTranslatedAR, FlagDelivered}

// Columns returns the full ledger column set, id column first.
func Columns() []string {
	cols := make([]string, 0, len(flagColumns)+1)
	cols = append(cols, idColumn)
	cols = append(cols, flagColumns...)
	return cols
}

// RequiredFlags names the flags every id must reach for strict completion.
func RequiredFlags() []string {
	cols := make([]string, len(flagColumns))
	copy(cols, flagColumns)
	return cols
}

// ValidFlag reports whether name is a known stage flag column.
func ValidFlag(name string) bool {
	for _, col := range flagColumns {
		if col == name {
			return true
		}
	}
	return false
}

// Flags maps stage flag names to their recorded outcome.
type Flags map[string]bool

// Row is one ledger entry. A row's presence does not imply completion;
// partial rows represent partial progress.
type Row struct {
	VideoID string
	Flags   Flags
}

// Complete reports whether every required flag is recorded true.
func (r Row) Complete() bool {
	for _, flag := range flagColumns {
		if !r.Flags[flag] {
			return false
		}
	}
	return true
}

// MissingFlags lists required flags not recorded true, in column order.
func (r Row) MissingFlags() []string {
	var missing []string
	for _, flag := range flagColumns {
		if !r.Flags[flag] {
			missing = append(missing, flag)
		}
	}
	return missing
}

// RepairOptions controls ledger repair behavior.
type RepairOptions struct {
	// MarkAllCompleted force-sets every required flag true for every known
	// id. A recovery escape hatch, not a normal operation.
	MarkAllCompleted bool
}

// RepairReport summarizes a repair run.
type RepairReport struct {
	BackupPath string
	Rows       int
	Recovered  int
	Duplicates int
	Completed  int
}

// Repository is the results ledger. Implementations must keep upserts safe
// against concurrent writers from other processes; the ledger is the one
// shared mutable resource across all chunk workers.
type Repository interface {
	// Get returns the row for id, or nil when no row exists.
	Get(ctx context.Context, id string) (*Row, error)
	// Upsert sets the provided flags on the row for id, creating the row if
	// absent. Flags not present in the map are left untouched.
	Upsert(ctx context.Context, id string, flags Flags) error
	// Read returns all rows in insertion order.
	Read(ctx context.Context) ([]Row, error)
	// Scan returns the rows matching pred, in insertion order.
	Scan(ctx context.Context, pred func(Row) bool) ([]Row, error)
	// SetFlagAll sets one flag to value on every known row, taking a backup
	// first.
	SetFlagAll(ctx context.Context, flag string, value bool) (*RepairReport, error)
	// Repair normalizes malformed state after taking a backup. It never
	// discards a recoverable row.
	Repair(ctx context.Context, opts RepairOptions) (*RepairReport, error)
	Close() error
}

// Open constructs the ledger backend selected by name ("csv" or "sqlite")
// rooted at path.
func Open(backend, path string) (Repository, error) {
	switch backend {
	case "csv":
		return OpenCSV(path)
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}
