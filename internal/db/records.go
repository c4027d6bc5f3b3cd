package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felo/cargo-eml-prompts/internal/batch"
	"github.com/felo/cargo-eml-prompts/internal/record"
)

// NullTime handles both string and time.Time values from SQLite
type NullTime struct {
	Time  time.Time
	Valid bool
}

var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Scan implements sql.Scanner for NullTime
func (nt *NullTime) Scan(value interface{}) error {
	if value == nil {
		nt.Time, nt.Valid = time.Time{}, false
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		nt.Time, nt.Valid = v, true
		return nil
	case string:
		var err error
		for _, format := range timeFormats {
			var t time.Time
			if t, err = time.Parse(format, v); err == nil {
				nt.Time, nt.Valid = t, true
				return nil
			}
		}
		return fmt.Errorf("failed to parse time string %q: %w", v, err)
	default:
		return fmt.Errorf("unsupported Scan type for NullTime: %T", value)
	}
}

// Value implements driver.Valuer for NullTime
func (nt NullTime) Value() (driver.Value, error) {
	if !nt.Valid {
		return nil, nil
	}
	return nt.Time, nil
}

// MarshalJSON writes the time as RFC 3339, or null
func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(nt.Time.UTC().Format(time.RFC3339))
}

// UnmarshalJSON reads the form written by MarshalJSON
func (nt *NullTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		nt.Time, nt.Valid = time.Time{}, false
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return nt.Scan(s)
}

// StoredRecord is a record as persisted for one run
type StoredRecord struct {
	ID       int64  `db:"id" json:"id"`
	RunID    string `db:"run_id" json:"run_id"`
	Position int    `db:"position" json:"position"`
	record.EmailRecord
	CreatedAt NullTime `db:"created_at" json:"created_at"`
}

// Run is the stored summary of one batch run
type Run struct {
	ID         string   `db:"id" json:"id"`
	Source     string   `db:"source" json:"source"`
	StartedAt  NullTime `db:"started_at" json:"started_at"`
	FinishedAt NullTime `db:"finished_at" json:"finished_at"`
	Total      int      `db:"total" json:"total"`
	Processed  int      `db:"processed" json:"processed"`
	Bytes      int64    `db:"bytes" json:"bytes"`
}

// RecordFilter narrows ListRecords. An empty RunID lists every run, newest first.
type RecordFilter struct {
	RunID  string
	Limit  int
	Offset int
}

const recordColumns = `r.id, r.run_id, r.position, r.filename, r.subject, r.from_addr,
	r.to_addr, r.date, r.body, r.created_at`

// SaveRun stores a run with its records and skipped files in one transaction
func (db *DB) SaveRun(ctx context.Context, res *batch.Result) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, started_at, finished_at, total, processed, bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, res.RunID, res.Source, res.StartedAt.UTC(), res.FinishedAt.UTC(), res.Total, res.Processed, res.Bytes)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.RunID, err)
	}

	recStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO records (run_id, position, filename, subject, from_addr, to_addr, date, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer recStmt.Close()

	for i, rec := range res.Records {
		_, err := recStmt.ExecContext(ctx, res.RunID, i, rec.Filename, rec.Subject, rec.From, rec.To, rec.Date, rec.Body)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.Filename, err)
		}
	}

	for _, s := range res.Skipped {
		_, err := tx.ExecContext(ctx, "INSERT INTO skipped (run_id, filename, reason) VALUES (?, ?, ?)",
			res.RunID, s.Filename, s.Reason)
		if err != nil {
			return fmt.Errorf("failed to insert skipped %s: %w", s.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", res.RunID, err)
	}
	return nil
}

// ListRecords retrieves stored records with pagination
func (db *DB) ListRecords(ctx context.Context, f RecordFilter) ([]StoredRecord, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	query := "SELECT " + recordColumns + " FROM records r"
	var args []interface{}
	if f.RunID != "" {
		query += " WHERE r.run_id = ? ORDER BY r.position"
		args = append(args, f.RunID)
	} else {
		query += " ORDER BY r.id DESC"
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	records := []StoredRecord{}
	if err := db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// GetRecord retrieves a record by its ID. A missing record is (nil, nil).
func (db *DB) GetRecord(ctx context.Context, id int64) (*StoredRecord, error) {
	var rec StoredRecord
	err := db.GetContext(ctx, &rec, "SELECT "+recordColumns+" FROM records r WHERE r.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}

// CountRecords returns the number of stored records
func (db *DB) CountRecords(ctx context.Context) (int, error) {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM records"); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// ListRuns retrieves runs, most recent first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	runs := []Run{}
	err := db.SelectContext(ctx, &runs, `
		SELECT id, source, started_at, finished_at, total, processed, bytes
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun retrieves a run by its ID. A missing run is (nil, nil).
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := db.GetContext(ctx, &run, `
		SELECT id, source, started_at, finished_at, total, processed, bytes
		FROM runs WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// GetSkipped lists the files a run could not convert, in run order
func (db *DB) GetSkipped(ctx context.Context, runID string) ([]batch.Skipped, error) {
	skipped := []batch.Skipped{}
	err := db.SelectContext(ctx, &skipped,
		"SELECT filename, reason FROM skipped WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get skipped files: %w", err)
	}
	return skipped, nil
}

// DeleteRun removes a run together with its records and skipped files
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}
