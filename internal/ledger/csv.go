package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"sluice/internal/fileutil"
	"sluice/internal/services"
)

// CSVRepository stores the ledger as a flat CSV file. Cross-process safety
// comes from a sidecar flock held for the duration of each mutation, and an
// in-process mutex serializes goroutines sharing one handle (the flock
// reports itself already held to its own process). Every write is a full
// read-modify-rewrite through an atomic rename so concurrent readers never
// see a torn file.
type CSVRepository struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// OpenCSV opens (or prepares to create) a CSV ledger at path.
func OpenCSV(path string) (*CSVRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", "ledger path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", "create ledger directory", err)
	}
	return &CSVRepository{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (r *CSVRepository) Close() error {
	return nil
}

func (r *CSVRepository) Get(ctx context.Context, id string) (*Row, error) {
	rows, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].VideoID == id {
			row := rows[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (r *CSVRepository) Read(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.lock.RLock(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "ledger", "read", "acquire shared lock", err)
	}
	defer func() {
		_ = r.lock.Unlock()
	}()
	return r.readStrict()
}

func (r *CSVRepository) Scan(ctx context.Context, pred func(Row) bool) ([]Row, error) {
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

func (r *CSVRepository) Upsert(ctx context.Context, id string, flags Flags) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return services.Wrap(services.ErrItemProcessing, "ledger", "upsert", "empty video id", nil)
	}
	for name := range flags {
		if !ValidFlag(name) {
			return services.Wrap(services.ErrItemProcessing, "ledger", "upsert", fmt.Sprintf("unknown flag %q", name), nil)
		}
	}
	return r.withLock(ctx, func() error {
		rows, err := r.readStrict()
		if err != nil {
			return err
		}
		found := false
		for i := range rows {
			if rows[i].VideoID != id {
				continue
			}
			found = true
			for name, value := range flags {
				rows[i].Flags[name] = value
			}
			break
		}
		if !found {
			merged := Flags{}
			for name, value := range flags {
				merged[name] = value
			}
			rows = append(rows, Row{VideoID: id, Flags: merged})
		}
		return r.write(rows)
	})
}

func (r *CSVRepository) SetFlagAll(ctx context.Context, flag string, value bool) (*RepairReport, error) {
	if !ValidFlag(flag) {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "set-flag", fmt.Sprintf("unknown flag %q", flag), nil)
	}
	report := &RepairReport{}
	err := r.withLock(ctx, func() error {
		rows, err := r.readStrict()
		if err != nil {
			return err
		}
		backup, err := r.backup()
		if err != nil {
			return err
		}
		report.BackupPath = backup
		for i := range rows {
			rows[i].Flags[flag] = value
			if rows[i].Complete() {
				report.Completed++
			}
		}
		report.Rows = len(rows)
		return r.write(rows)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Repair re-reads the file tolerantly, keeps every row with a recognizable
// video id, resolves duplicate ids last-wins while preserving first-seen
// order, and rewrites the file in canonical form. The original is backed up
// first so repair never destroys evidence.
func (r *CSVRepository) Repair(ctx context.Context, opts RepairOptions) (*RepairReport, error) {
	report := &RepairReport{}
	err := r.withLock(ctx, func() error {
		raw, err := os.ReadFile(r.path)
		if os.IsNotExist(err) {
			raw = nil
		} else if err != nil {
			return services.Wrap(services.ErrTransient, "ledger", "repair", "read ledger", err)
		}
		if len(raw) > 0 {
			backup, err := r.backup()
			if err != nil {
				return err
			}
			report.BackupPath = backup
		}

		rows, recovered, duplicates := parseTolerant(raw)
		report.Recovered = recovered
		report.Duplicates = duplicates

		for i := range rows {
			if opts.MarkAllCompleted {
				for _, flag := range RequiredFlags() {
					rows[i].Flags[flag] = true
				}
			}
			if rows[i].Complete() {
				report.Completed++
			}
		}
		report.Rows = len(rows)
		return r.write(rows)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *CSVRepository) withLock(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.lock.Lock(); err != nil {
		return services.Wrap(services.ErrTransient, "ledger", "lock", "acquire exclusive lock", err)
	}
	defer func() {
		_ = r.lock.Unlock()
	}()
	return fn()
}

// readStrict parses the ledger and surfaces any structural damage as
// ErrLedgerCorrupt so callers know to run repair instead of guessing.
func (r *CSVRepository) readStrict() ([]Row, error) {
	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ledger", "read", "read ledger", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = len(Columns())
	records, err := reader.ReadAll()
	if err != nil {
		return nil, services.Wrap(services.ErrLedgerCorrupt, "ledger", "read", "malformed csv, run ledger repair", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if !equalColumns(records[0], Columns()) {
		return nil, services.Wrap(services.ErrLedgerCorrupt, "ledger", "read", fmt.Sprintf("unexpected header %q, run ledger repair", strings.Join(records[0], ",")), nil)
	}

	rows := make([]Row, 0, len(records)-1)
	seen := make(map[string]struct{}, len(records)-1)
	for _, record := range records[1:] {
		id := strings.TrimSpace(record[0])
		if id == "" {
			return nil, services.Wrap(services.ErrLedgerCorrupt, "ledger", "read", "row with empty video id, run ledger repair", nil)
		}
		if _, dup := seen[id]; dup {
			return nil, services.Wrap(services.ErrLedgerCorrupt, "ledger", "read", fmt.Sprintf("duplicate video id %q, run ledger repair", id), nil)
		}
		seen[id] = struct{}{}
		flags := Flags{}
		for i, name := range RequiredFlags() {
			flags[name] = parseBool(record[i+1])
		}
		rows = append(rows, Row{VideoID: id, Flags: flags})
	}
	return rows, nil
}

func (r *CSVRepository) write(rows []Row) error {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(Columns()); err != nil {
		return services.Wrap(services.ErrTransient, "ledger", "write", "encode header", err)
	}
	for _, row := range rows {
		record := make([]string, 0, len(Columns()))
		record = append(record, row.VideoID)
		for _, name := range RequiredFlags() {
			record = append(record, formatBool(row.Flags[name]))
		}
		if err := writer.Write(record); err != nil {
			return services.Wrap(services.ErrTransient, "ledger", "write", "encode row", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return services.Wrap(services.ErrTransient, "ledger", "write", "flush csv", err)
	}
	if err := fileutil.WriteFileAtomic(r.path, buf.Bytes(), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "ledger", "write", "replace ledger file", err)
	}
	return nil
}

func (r *CSVRepository) backup() (string, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return "", nil
	}
	backup := fmt.Sprintf("%s.%s.bak", r.path, time.Now().Format("20060102T150405"))
	if err := fileutil.CopyFileVerified(r.path, backup); err != nil {
		return "", services.Wrap(services.ErrTransient, "ledger", "backup", "copy ledger backup", err)
	}
	return backup, nil
}

// parseTolerant extracts every salvageable row from raw ledger bytes. Ragged
// rows keep the flags they have and default the rest false; a missing or
// mangled header is ignored; duplicate ids are merged last-wins in first-seen
// position. recovered counts rows that needed normalization.
func parseTolerant(raw []byte) (rows []Row, recovered, duplicates int) {
	index := make(map[string]int)
	width := len(Columns())
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		id := strings.TrimSpace(fields[0])
		if id == "" || id == idColumn {
			continue
		}
		if len(fields) != width {
			recovered++
		}
		flags := Flags{}
		for i, name := range RequiredFlags() {
			if i+1 < len(fields) {
				flags[name] = parseBool(fields[i+1])
			}
		}
		if pos, dup := index[id]; dup {
			duplicates++
			rows[pos].Flags = flags
			continue
		}
		index[id] = len(rows)
		rows = append(rows, Row{VideoID: id, Flags: flags})
	}
	return rows, recovered, duplicates
}

func parseBool(field string) bool {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func formatBool(value bool) string {
	if value {
		return "True"
	}
	return "False"
}

func equalColumns(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if strings.TrimSpace(got[i]) != want[i] {
			return false
		}
	}
	return true
}
