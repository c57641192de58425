package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sluice/internal/fileutil"
	"sluice/internal/services"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteRepository is the embedded-store alternative to the flat CSV ledger.
// It keeps the same semantics (one row per video id, flag columns, insertion
// order on read) while letting SQLite handle cross-process write contention.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates a SQLite ledger at path.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", "ledger path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", "create ledger directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", "open sqlite db", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	repo := &SQLiteRepository{db: db, path: path}
	if err := repo.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) initSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ledger_rows (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id TEXT NOT NULL UNIQUE,
	%s INTEGER NOT NULL DEFAULT 0,
	%s INTEGER NOT NULL DEFAULT 0,
	%s INTEGER NOT NULL DEFAULT 0,
	%s INTEGER NOT NULL DEFAULT 0
)`, FlagUploaded, FlagTranslatedRU, FlagTranslatedAR, FlagDelivered)
	if err := r.execWithRetry(ctx, schema); err != nil {
		return services.Wrap(services.ErrConfiguration, "ledger", "open", "create schema", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Row, error) {
	query := fmt.Sprintf("SELECT video_id, %s FROM ledger_rows WHERE video_id = ?", strings.Join(RequiredFlags(), ", "))
	row := r.db.QueryRowContext(ctx, query, id)
	parsed, err := scanRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ledger", "get", "query row", err)
	}
	return &parsed, nil
}

func (r *SQLiteRepository) Read(ctx context.Context) ([]Row, error) {
	query := fmt.Sprintf("SELECT video_id, %s FROM ledger_rows ORDER BY seq", strings.Join(RequiredFlags(), ", "))
	dbRows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ledger", "read", "query rows", err)
	}
	defer dbRows.Close()

	var rows []Row
	for dbRows.Next() {
		parsed, err := scanRow(dbRows.Scan)
		if err != nil {
			return nil, services.Wrap(services.ErrLedgerCorrupt, "ledger", "read", "scan row", err)
		}
		rows = append(rows, parsed)
	}
	if err := dbRows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "ledger", "read", "iterate rows", err)
	}
	return rows, nil
}

func (r *SQLiteRepository) Scan(ctx context.Context, pred func(Row) bool) ([]Row, error) {
	rows, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Row
	for _, row := range rows {
		if pred(row) {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, id string, flags Flags) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return services.Wrap(services.ErrItemProcessing, "ledger", "upsert", "empty video id", nil)
	}
	cols := []string{"video_id"}
	args := []any{id}
	var updates []string
	for _, name := range RequiredFlags() {
		value, ok := flags[name]
		if !ok {
			continue
		}
		cols = append(cols, name)
		args = append(args, boolToInt(value))
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", name, name))
	}
	for name := range flags {
		if !ValidFlag(name) {
			return services.Wrap(services.ErrItemProcessing, "ledger", "upsert", fmt.Sprintf("unknown flag %q", name), nil)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO ledger_rows (%s) VALUES (%s) ON CONFLICT(video_id) DO ", strings.Join(cols, ", "), placeholders)
	if len(updates) == 0 {
		query += "NOTHING"
	} else {
		query += "UPDATE SET " + strings.Join(updates, ", ")
	}
	if err := r.execWithRetry(ctx, query, args...); err != nil {
		return services.Wrap(services.ErrTransient, "ledger", "upsert", "write row", err)
	}
	return nil
}

func (r *SQLiteRepository) SetFlagAll(ctx context.Context, flag string, value bool) (*RepairReport, error) {
	if !ValidFlag(flag) {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "set-flag", fmt.Sprintf("unknown flag %q", flag), nil)
	}
	report := &RepairReport{}
	backup, err := r.backup()
	if err != nil {
		return nil, err
	}
	report.BackupPath = backup

	if err := r.execWithRetry(ctx, fmt.Sprintf("UPDATE ledger_rows SET %s = ?", flag), boolToInt(value)); err != nil {
		return nil, services.Wrap(services.ErrTransient, "ledger", "set-flag", "update rows", err)
	}
	return r.fillCounts(ctx, report)
}

func (r *SQLiteRepository) Repair(ctx context.Context, opts RepairOptions) (*RepairReport, error) {
	report := &RepairReport{}
	backup, err := r.backup()
	if err != nil {
		return nil, err
	}
	report.BackupPath = backup

	var check string
	if err := r.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&check); err != nil {
		return nil, services.Wrap(services.ErrLedgerCorrupt, "ledger", "repair", "integrity check", err)
	}
	if check != "ok" {
		return nil, services.Wrap(services.ErrLedgerCorrupt, "ledger", "repair", fmt.Sprintf("integrity check reported %q, restore from backup", check), nil)
	}

	if opts.MarkAllCompleted {
		sets := make([]string, 0, len(RequiredFlags()))
		for _, flag := range RequiredFlags() {
			sets = append(sets, flag+" = 1")
		}
		if err := r.execWithRetry(ctx, "UPDATE ledger_rows SET "+strings.Join(sets, ", ")); err != nil {
			return nil, services.Wrap(services.ErrTransient, "ledger", "repair", "mark rows completed", err)
		}
	}
	return r.fillCounts(ctx, report)
}

func (r *SQLiteRepository) fillCounts(ctx context.Context, report *RepairReport) (*RepairReport, error) {
	rows, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	report.Rows = len(rows)
	for _, row := range rows {
		if row.Complete() {
			report.Completed++
		}
	}
	return report, nil
}

func (r *SQLiteRepository) backup() (string, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return "", nil
	}
	backup := fmt.Sprintf("%s.%s.bak", r.path, time.Now().Format("20060102T150405"))
	if err := fileutil.CopyFileVerified(r.path, backup); err != nil {
		return "", services.Wrap(services.ErrTransient, "ledger", "backup", "copy ledger backup", err)
	}
	return backup, nil
}

func (r *SQLiteRepository) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := r.db.ExecContext(ctx, query, args...)
		return err
	})
}

func scanRow(scan func(dest ...any) error) (Row, error) {
	var (
		id     string
		values = make([]int, len(RequiredFlags()))
		dest   = make([]any, 0, len(RequiredFlags())+1)
	)
	dest = append(dest, &id)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := scan(dest...); err != nil {
		return Row{}, err
	}
	flags := Flags{}
	for i, name := range RequiredFlags() {
		flags[name] = values[i] != 0
	}
	return Row{VideoID: id, Flags: flags}, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
