package kb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"
)

// PostgresConfig holds connection parameters for the secondary KB store.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Table    string
	SSLMode  string
}

// identRe restricts the configurable table name to a plain SQL identifier,
// since it is interpolated into query text.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresKB is the secondary knowledge-base store. It shares the logical
// knowledge_base schema with SQLiteKB but searches by case-insensitive
// substring containment instead of fuzzy scoring.
type PostgresKB struct {
	db    *sql.DB
	table string
}

// OpenPostgres connects to the configured Postgres database. It is called
// only when the postgres backend is selected, so sqlite and vector modes
// never require a running Postgres.
func OpenPostgres(cfg PostgresConfig) (*PostgresKB, error) {
	if !identRe.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &PostgresKB{db: db, table: cfg.Table}, nil
}

// Close closes the underlying database connection.
func (p *PostgresKB) Close() error {
	return p.db.Close()
}

// SearchLike returns up to limit entries whose question, answer, or keywords
// contain the query as a case-insensitive substring. Order among matches is
// store-defined, not relevance-ranked.
func (p *PostgresKB) SearchLike(ctx context.Context, query string, limit int) ([]Entry, error) {
	pattern := "%" + query + "%"
	q := fmt.Sprintf(`SELECT id, category, question, answer, keywords
		FROM %s
		WHERE question ILIKE $1 OR answer ILIKE $2 OR keywords ILIKE $3
		LIMIT $4`, p.table)

	rows, err := p.db.QueryContext(ctx, q, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", p.table, err)
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

// Insert appends a new knowledge entry and returns its assigned id.
func (p *PostgresKB) Insert(ctx context.Context, category, question, answer string, keywords []string) (int64, error) {
	q := fmt.Sprintf(`INSERT INTO %s (category, question, answer, keywords)
		VALUES ($1, $2, $3, $4) RETURNING id`, p.table)

	var id int64
	err := p.db.QueryRowContext(ctx, q, category, question, answer, JoinKeywords(keywords)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting knowledge entry: %w", err)
	}
	return id, nil
}
