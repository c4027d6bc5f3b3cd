package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/felo/cargo-eml-prompts/internal/batch"
	"github.com/felo/cargo-eml-prompts/internal/record"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close test database: %v", err)
	}
}

// CreateTestRecord creates a record with default header values
func CreateTestRecord(name, subject, body string) record.EmailRecord {
	return record.EmailRecord{
		Filename: fmt.Sprintf("%s.eml", name),
		Subject:  subject,
		From:     "ops@forwarder.example",
		To:       "cargo@airline.example",
		Date:     "Mon, 1 Jan 2024 10:00:00 +0000",
		Body:     body,
	}
}

// CreateTestResult wraps records and skipped files as a finished run
func CreateTestResult(records []record.EmailRecord, skipped ...batch.Skipped) *batch.Result {
	start := time.Now().UTC().Add(-time.Second)
	if skipped == nil {
		skipped = []batch.Skipped{}
	}
	return &batch.Result{
		RunID:      uuid.NewString(),
		Source:     "/test/inbox",
		StartedAt:  start,
		FinishedAt: start.Add(500 * time.Millisecond),
		Total:      len(records) + len(skipped),
		Processed:  len(records),
		Bytes:      int64(len(records)) * 1024,
		Skipped:    skipped,
		Records:    records,
	}
}

// SaveTestRun stores a run built from records and returns it
func SaveTestRun(t *testing.T, db *DB, records []record.EmailRecord, skipped ...batch.Skipped) *batch.Result {
	t.Helper()

	res := CreateTestResult(records, skipped...)
	if err := db.SaveRun(context.Background(), res); err != nil {
		t.Fatalf("Failed to save test run: %v", err)
	}

	return res
}
