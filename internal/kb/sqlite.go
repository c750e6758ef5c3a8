// Package kb stores the endpoint-support knowledge base: canned
// category/question/answer/keyword rows plus the endpoint logs and device
// health snapshots consumed by deep research. Two interchangeable row
// stores exist: a SQLite store searched by fuzzy scan and a Postgres store
// searched by pattern matching.
package kb

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/endpointd/internal/similarity"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteKB is the primary knowledge-base store, backed by a SQLite file.
type SQLiteKB struct {
	db *sql.DB
}

// Open opens (or creates) the assistant database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*SQLiteKB, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "assistant.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteKB{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteKB) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for vector ingestion and tests.
func (s *SQLiteKB) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *SQLiteKB) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *SQLiteKB) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Knowledge base ---

// Insert appends a new knowledge entry and returns its assigned id.
// There is no uniqueness constraint on any field.
func (s *SQLiteKB) Insert(category, question, answer string, keywords []string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO knowledge_base (category, question, answer, keywords) VALUES (?, ?, ?, ?)",
		category, question, answer, JoinKeywords(keywords),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting knowledge entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	return id, nil
}

// All returns every knowledge entry in id order.
func (s *SQLiteKB) All() ([]Entry, error) {
	rows, err := s.db.Query("SELECT id, category, question, answer, keywords FROM knowledge_base ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("querying knowledge base: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var keywords string
		if err := rows.Scan(&e.ID, &e.Category, &e.Question, &e.Answer, &keywords); err != nil {
			return nil, fmt.Errorf("scanning knowledge entry: %w", err)
		}
		e.Keywords = SplitKeywords(keywords)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FuzzySearch scans every entry and scores the lowercased query against each
// keyword token and the full question text, returning the entry with the
// single highest score seen. Returns (nil, 0.0) for an empty store.
//
// Linear in entries x keywords; fine at demo scale, but a larger store
// needs a keyword index instead of this scan.
func (s *SQLiteKB) FuzzySearch(query string) (*Entry, float64, error) {
	entries, err := s.All()
	if err != nil {
		return nil, 0, err
	}

	q := strings.ToLower(query)
	var best *Entry
	bestScore := 0.0

	for i := range entries {
		e := &entries[i]
		for _, kw := range e.Keywords {
			if score := similarity.Ratio(q, strings.ToLower(kw)); score > bestScore {
				bestScore = score
				best = e
			}
		}
		if score := similarity.Ratio(q, strings.ToLower(e.Question)); score > bestScore {
			bestScore = score
			best = e
		}
	}

	return best, bestScore, nil
}

// --- Logs ---

// InsertLog appends one endpoint log line.
func (s *SQLiteKB) InsertLog(text string, ts time.Time) error {
	_, err := s.db.Exec("INSERT INTO logs (log_text, timestamp) VALUES (?, ?)",
		text, ts.UTC().Format(time.RFC3339))
	return err
}

// RecentLogs returns the newest log lines, most recent first.
func (s *SQLiteKB) RecentLogs(limit int) ([]LogLine, error) {
	rows, err := s.db.Query("SELECT id, log_text, timestamp FROM logs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var logs []LogLine
	for rows.Next() {
		var l LogLine
		var ts string
		if err := rows.Scan(&l.ID, &l.Text, &ts); err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing log timestamp: %w", err)
		}
		l.Timestamp = t
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// --- Device health ---

// InsertHealth appends one device health snapshot.
func (s *SQLiteKB) InsertHealth(cpu, ram int, status string, ts time.Time) error {
	_, err := s.db.Exec("INSERT INTO device_health (cpu_usage, ram_usage, status, timestamp) VALUES (?, ?, ?, ?)",
		cpu, ram, status, ts.UTC().Format(time.RFC3339))
	return err
}

// LatestHealth returns the most recent device health snapshot, or
// ErrNotFound when none has been recorded.
func (s *SQLiteKB) LatestHealth() (DeviceHealth, error) {
	var h DeviceHealth
	var ts string
	err := s.db.QueryRow("SELECT id, cpu_usage, ram_usage, status, timestamp FROM device_health ORDER BY id DESC LIMIT 1").
		Scan(&h.ID, &h.CPUUsage, &h.RAMUsage, &h.Status, &ts)
	if err == sql.ErrNoRows {
		return DeviceHealth{}, ErrNotFound
	}
	if err != nil {
		return DeviceHealth{}, err
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return DeviceHealth{}, fmt.Errorf("parsing health timestamp: %w", err)
	}
	h.Recorded = t
	return h, nil
}
