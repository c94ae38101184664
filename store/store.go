// Package store exports the case timeline into a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/report"
)

// DB wraps a SQLite connection holding one exported timeline.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) a timeline database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Export writes tl to a fresh database at path. The database is built under
// a temporary name next to path and renamed into place once complete.
func Export(ctx context.Context, path string, tl *model.CaseTimeline) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("sqlite path is empty")
	}

	tmp := path + ".tmp-" + uuid.NewString()
	db, err := Open(tmp)
	if err != nil {
		return err
	}
	cleanup := func() {
		db.Close()
		os.Remove(tmp)
	}

	if err := db.InsertTimeline(ctx, tl); err != nil {
		cleanup()
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close database: %w", err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename database: %w", err)
	}
	return nil
}

// Exporter writes the timeline database as one artifact of a run. With a
// logger set, the written database is reopened and its row counts and
// scan-only attachments are logged.
type Exporter struct {
	Path   string
	Logger *slog.Logger
}

func (e Exporter) Emit(ctx context.Context, tl *model.CaseTimeline) ([]string, error) {
	if err := Export(ctx, e.Path, tl); err != nil {
		return nil, fmt.Errorf("sqlite export: %w", err)
	}
	if e.Logger != nil {
		if err := e.summarize(ctx); err != nil {
			e.Logger.Warn("inspect sqlite export", "path", e.Path, "error", err)
		}
	}
	return []string{e.Path}, nil
}

func (e Exporter) summarize(ctx context.Context) error {
	db, err := Open(e.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.Counts(ctx)
	if err != nil {
		return err
	}
	e.Logger.Info("sqlite export written",
		"path", db.Path(),
		"threads", counts.Threads,
		"messages", counts.Messages,
		"attachments", counts.Attachments,
		"scan_only", counts.ScanOnly,
	)
	if counts.ScanOnly == 0 {
		return nil
	}

	scans, err := db.ScanOnly(ctx)
	if err != nil {
		return err
	}
	e.Logger.Warn("exported scan-only PDFs, OCR required", "count", len(scans), "attachments", strings.Join(scans, ", "))
	return nil
}

// InsertTimeline inserts every thread, message and attachment in one
// transaction.
func (d *DB) InsertTimeline(ctx context.Context, tl *model.CaseTimeline) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for pos, thread := range tl.Threads() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO threads (id, position, subject, labels, first_timestamp, last_timestamp, message_count)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			thread.ID, pos, thread.Subject, strings.Join(thread.Labels, ","),
			report.FormatTimestamp(thread.FirstTimestamp), report.FormatTimestamp(thread.LastTimestamp),
			len(thread.Messages),
		); err != nil {
			return fmt.Errorf("insert thread %s: %w", thread.ID, err)
		}

		for mpos, m := range thread.Messages {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO messages (thread_id, id, position, timestamp, sender, to_addr, cc, subject, body, duplicate_of)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				thread.ID, m.ID, mpos, report.FormatTimestamp(m.Timestamp), m.Sender, m.To, m.Cc,
				nullIfEmpty(m.Subject), m.Body, nullIfEmpty(m.DuplicateOf),
			); err != nil {
				return fmt.Errorf("insert message %s: %w", m.ID, err)
			}

			for apos, a := range m.Attachments {
				if _, err := tx.ExecContext(ctx, `
					INSERT OR IGNORE INTO attachments (thread_id, message_id, position, filename, media_type, status, pages, text, error)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					thread.ID, m.ID, apos, a.Filename, a.MediaType, string(a.Status), a.Pages,
					nullIfEmpty(a.Text), nullIfEmpty(a.Error),
				); err != nil {
					return fmt.Errorf("insert attachment %s: %w", a.Filename, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Counts reports how many rows each table holds.
type Counts struct {
	Threads     int
	Messages    int
	Attachments int
	ScanOnly    int
}

// Counts returns row counts of the database.
func (d *DB) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	row := d.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM threads),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM attachments),
			(SELECT COUNT(*) FROM attachments WHERE status = ?)`,
		string(model.StatusEmptyScan),
	)
	if err := row.Scan(&c.Threads, &c.Messages, &c.Attachments, &c.ScanOnly); err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// ScanOnly lists the attachments that need OCR as "thread/message/filename".
func (d *DB) ScanOnly(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT thread_id, message_id, filename FROM attachments
		WHERE status = ?
		ORDER BY thread_id, message_id, position`,
		string(model.StatusEmptyScan),
	)
	if err != nil {
		return nil, fmt.Errorf("query scan-only attachments: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var thread, message, filename string
		if err := rows.Scan(&thread, &message, &filename); err != nil {
			return nil, fmt.Errorf("scan attachment row: %w", err)
		}
		out = append(out, thread+"/"+message+"/"+filename)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
