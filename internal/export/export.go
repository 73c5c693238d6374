// Package export snapshots the JSON stores into a SQLite database for
// durability and ad-hoc querying.
package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mailsift/mailsift/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS emails (
	id TEXT PRIMARY KEY,
	thread_id TEXT,
	date TEXT,
	sender TEXT,
	subject TEXT,
	body TEXT,
	category_1 TEXT NOT NULL,
	category_2 TEXT NOT NULL,
	processed_at TEXT
);

CREATE TABLE IF NOT EXISTS processed_ids (
	id TEXT PRIMARY KEY
);

CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(date);
CREATE INDEX IF NOT EXISTS idx_emails_category ON emails(category_1);
`

// ToSQLite writes records and processed IDs into the database at
// dbPath, creating it if needed. Existing rows with the same id are
// replaced, so re-exporting is idempotent.
func ToSQLite(dbPath string, records []types.EmailRecord, processedIDs []string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertEmail, err := tx.Prepare(`
		INSERT OR REPLACE INTO emails
			(id, thread_id, date, sender, subject, body, category_1, category_2, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare email insert: %w", err)
	}
	defer insertEmail.Close()

	for _, rec := range records {
		if len(rec.Categories) < 2 {
			// Should not exist; the pipeline never persists these.
			continue
		}
		if _, err := insertEmail.Exec(
			rec.ID, rec.ThreadID, rec.Date, rec.Sender, rec.Subject, rec.Body,
			rec.Categories[0], rec.Categories[1], rec.ProcessedAt,
		); err != nil {
			return fmt.Errorf("insert email %s: %w", rec.ID, err)
		}
	}

	insertID, err := tx.Prepare(`INSERT OR IGNORE INTO processed_ids (id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare id insert: %w", err)
	}
	defer insertID.Close()

	for _, id := range processedIDs {
		if _, err := insertID.Exec(id); err != nil {
			return fmt.Errorf("insert processed id %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
