// Package storage keeps a SQLite snapshot of the last raw sheet values read
// from the primary source, so a run can fall back to it when the source is
// unavailable.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"finanze/internal/core"
	ports "finanze/internal/sheets"

	_ "modernc.org/sqlite"
)

const (
	snapshotsTable = "sheet_snapshots"
	rowsTable      = "snapshot_rows"
	// SQLite caps bound variables per statement; three per row.
	insertBatch = 300
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ ports.Source         = (*SQLiteRepository)(nil)
	_ ports.SnapshotWriter = (*SQLiteRepository)(nil)
)

// SnapshotInfo describes a stored sheet.
type SnapshotInfo struct {
	Sheet   string
	Rows    int
	SavedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Sheets are snapshotted from concurrent goroutines; one connection
	// serializes the writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSnapshot replaces the stored copy of sheet with values.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, sheet string, values [][]any) error {
	key := sheetKey(sheet)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	del, args, err := sq.Delete(rowsTable).Where(sq.Eq{"sheet_key": key}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("clear snapshot %q: %w", sheet, err)
	}

	header, args, err := sq.Replace(snapshotsTable).
		Columns("sheet_key", "sheet", "row_count", "saved_at").
		Values(key, sheet, len(values), r.now().UTC()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, header, args...); err != nil {
		return fmt.Errorf("save snapshot header %q: %w", sheet, err)
	}

	for start := 0; start < len(values); start += insertBatch {
		end := min(start+insertBatch, len(values))
		ins := sq.Insert(rowsTable).Columns("sheet_key", "row_idx", "cells")
		for i := start; i < end; i++ {
			cells, err := encodeRow(values[i])
			if err != nil {
				return fmt.Errorf("encode %q row %d: %w", sheet, i+1, err)
			}
			ins = ins.Values(key, i, cells)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save snapshot rows %q: %w", sheet, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %q: %w", sheet, err)
	}
	return nil
}

// ReadSheet returns the stored values of sheet, or ports.ErrSheetNotFound.
func (r *SQLiteRepository) ReadSheet(ctx context.Context, name string) ([][]any, error) {
	info, err := r.Info(ctx, name)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("cells").
		From(rowsTable).
		Where(sq.Eq{"sheet_key": sheetKey(name)}).
		OrderBy("row_idx").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", name, err)
	}
	defer rows.Close()

	out := make([][]any, 0, info.Rows)
	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("scan snapshot %q: %w", name, err)
		}
		row, err := decodeRow(cells)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot %q: %w", name, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SheetNames lists stored sheets by name.
func (r *SQLiteRepository) SheetNames(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("sheet").From(snapshotsTable).OrderBy("sheet").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Info returns metadata about the stored copy of sheet.
func (r *SQLiteRepository) Info(ctx context.Context, sheet string) (SnapshotInfo, error) {
	query, args, err := sq.Select("sheet", "row_count", "saved_at").
		From(snapshotsTable).
		Where(sq.Eq{"sheet_key": sheetKey(sheet)}).
		ToSql()
	if err != nil {
		return SnapshotInfo{}, err
	}
	var info SnapshotInfo
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&info.Sheet, &info.Rows, &info.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, fmt.Errorf("%w: no snapshot for %q", ports.ErrSheetNotFound, sheet)
	}
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("read snapshot info %q: %w", sheet, err)
	}
	return info, nil
}

func sheetKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// dateCell tags a typed date in the stored JSON so it reads back as a date
// with its full year.
const (
	dateCell       = "$date"
	dateCellLayout = "2006-01-02"
)

// encodeRow stores a row as a JSON array.
func encodeRow(row []any) (string, error) {
	cells := make([]any, len(row))
	for i, c := range row {
		switch x := c.(type) {
		case time.Time:
			cells[i] = map[string]string{dateCell: x.Format(dateCellLayout)}
		case core.Date:
			cells[i] = map[string]string{dateCell: x.Format(dateCellLayout)}
		default:
			cells[i] = c
		}
	}
	b, err := json.Marshal(cells)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRow(s string) ([]any, error) {
	var cells []any
	if err := json.Unmarshal([]byte(s), &cells); err != nil {
		return nil, err
	}
	if cells == nil {
		cells = []any{}
	}
	for i, c := range cells {
		m, ok := c.(map[string]any)
		if !ok || len(m) != 1 {
			continue
		}
		text, ok := m[dateCell].(string)
		if !ok {
			continue
		}
		t, err := time.Parse(dateCellLayout, text)
		if err != nil {
			return nil, fmt.Errorf("decode date cell %q: %w", text, err)
		}
		cells[i] = t
	}
	return cells, nil
}
