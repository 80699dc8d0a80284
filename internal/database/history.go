package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/formcrop/formcrop/internal/engine"
)

// FileName is the database file created inside the history directory.
const FileName = "formcrop.db"

// HistoryDB stores one row per processed item and one per output label.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool
	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("history database not found at %s: %w", dbPath, err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_started ON items(started_at);

	CREATE TABLE IF NOT EXISTS labels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		status TEXT NOT NULL,
		quality INTEGER,
		size_bytes INTEGER,
		path TEXT,
		region TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_labels_item ON labels(item_id);
	CREATE INDEX IF NOT EXISTS idx_labels_status ON labels(status);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// Record stores res and its label results in a single transaction. It
// satisfies engine.Recorder.
func (h *HistoryDB) Record(ctx context.Context, res engine.ItemResult) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out, err := tx.ExecContext(ctx,
		`INSERT INTO items (source, output_dir, started_at, duration_ms, error) VALUES (?, ?, ?, ?, ?)`,
		res.Source, res.OutputDir, res.Started.UTC().Format(time.RFC3339Nano),
		res.Duration.Milliseconds(), errString(res.Err))
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	itemID, err := out.LastInsertId()
	if err != nil {
		return err
	}

	for _, l := range res.Labels {
		region := ""
		if !l.Region.Empty() {
			r := l.Region
			region = fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO labels (item_id, label, status, quality, size_bytes, path, region, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			itemID, l.Label, string(l.Status), l.Quality, l.SizeBytes, l.Path, region, errString(l.Err))
		if err != nil {
			return fmt.Errorf("insert label %s: %w", l.Label, err)
		}
	}
	return tx.Commit()
}

// ItemRecord is a stored item with its labels.
type ItemRecord struct {
	ID        int64
	Source    string
	OutputDir string
	StartedAt time.Time
	Duration  time.Duration
	Error     string
	Labels    []LabelRecord
}

// LabelRecord is a stored label result.
type LabelRecord struct {
	Label     string
	Status    engine.Status
	Quality   int
	SizeBytes int
	Path      string
	Region    string
	Error     string
}

// Recent returns the newest limit items, newest first.
func (h *HistoryDB) Recent(ctx context.Context, limit int) ([]ItemRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, source, output_dir, started_at, duration_ms, COALESCE(error, '')
		FROM items
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var (
			it      ItemRecord
			started string
			ms      int64
		)
		if err := rows.Scan(&it.ID, &it.Source, &it.OutputDir, &started, &ms, &it.Error); err != nil {
			return nil, err
		}
		it.StartedAt = parseTimestamp(started)
		it.Duration = time.Duration(ms) * time.Millisecond
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range items {
		labels, err := h.labels(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Labels = labels
	}
	return items, nil
}

func (h *HistoryDB) labels(ctx context.Context, itemID int64) ([]LabelRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT label, status, COALESCE(quality, 0), COALESCE(size_bytes, 0),
			COALESCE(path, ''), COALESCE(region, ''), COALESCE(error, '')
		FROM labels
		WHERE item_id = ?
		ORDER BY id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var labels []LabelRecord
	for rows.Next() {
		var (
			l      LabelRecord
			status string
		)
		if err := rows.Scan(&l.Label, &status, &l.Quality, &l.SizeBytes, &l.Path, &l.Region, &l.Error); err != nil {
			return nil, err
		}
		l.Status = engine.Status(status)
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// StatusCounts returns how many label results ended in each status.
func (h *HistoryDB) StatusCounts(ctx context.Context) (map[engine.Status]int, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM labels GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[engine.Status]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[engine.Status(status)] = n
	}
	return counts, rows.Err()
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time for unparseable values.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
