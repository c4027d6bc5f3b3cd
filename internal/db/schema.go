package db

// Records are stored whole; the body is what the prompts carry, so it is
// both searchable and returned as-is
const schema = `
-- One row per batch run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    started_at DATETIME,
    finished_at DATETIME,
    total INTEGER NOT NULL DEFAULT 0,
    processed INTEGER NOT NULL DEFAULT 0,
    bytes INTEGER NOT NULL DEFAULT 0
);

-- Converted records, in the order the run produced them
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    filename TEXT NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    from_addr TEXT NOT NULL DEFAULT '',
    to_addr TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

-- Messages a run could not convert
CREATE TABLE IF NOT EXISTS skipped (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    reason TEXT NOT NULL,
    FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

-- Full-text search virtual table
CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
    filename,
    subject,
    from_addr,
    to_addr,
    body,
    content='records',
    content_rowid='id'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS records_ai AFTER INSERT ON records BEGIN
    INSERT INTO records_fts(rowid, filename, subject, from_addr, to_addr, body)
    VALUES (new.id, new.filename, new.subject, new.from_addr, new.to_addr, new.body);
END;

CREATE TRIGGER IF NOT EXISTS records_ad AFTER DELETE ON records BEGIN
    INSERT INTO records_fts(records_fts, rowid, filename, subject, from_addr, to_addr, body)
    VALUES ('delete', old.id, old.filename, old.subject, old.from_addr, old.to_addr, old.body);
END;

CREATE TRIGGER IF NOT EXISTS records_au AFTER UPDATE ON records BEGIN
    INSERT INTO records_fts(records_fts, rowid, filename, subject, from_addr, to_addr, body)
    VALUES ('delete', old.id, old.filename, old.subject, old.from_addr, old.to_addr, old.body);
    INSERT INTO records_fts(rowid, filename, subject, from_addr, to_addr, body)
    VALUES (new.id, new.filename, new.subject, new.from_addr, new.to_addr, new.body);
END;

-- Settings table (last input directory, preferences)
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes for performance
CREATE INDEX IF NOT EXISTS idx_records_run_position ON records(run_id, position);
CREATE INDEX IF NOT EXISTS idx_records_filename ON records(filename);
CREATE INDEX IF NOT EXISTS idx_skipped_run_id ON skipped(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`
