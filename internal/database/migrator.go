package database

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the migrator needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Migrator applies the embedded SQL files in name order, once each.
// Applied files are tracked in schema_migrations.
type Migrator struct {
	db  DB
	fs  fs.FS
	dir string
}

// NewMigrator creates a migrator reading *.sql from dir inside migrationsFS.
// Use "." for an embed.FS that holds the files at its root.
func NewMigrator(db DB, migrationsFS fs.FS, dir string) *Migrator {
	if dir == "" {
		dir = "."
	}
	return &Migrator{db: db, fs: migrationsFS, dir: dir}
}

// RunMigrations executes all pending migrations. Files containing "reset"
// in their name are never run automatically.
func (m *Migrator) RunMigrations(ctx context.Context) error {
	log.Println("[Migrate] Starting database migrations...")

	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	entries, err := fs.ReadDir(m.fs, m.dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		files = append(files, e.Name())
	}

	run := 0
	for _, filename := range pendingMigrations(files, applied) {
		content, err := fs.ReadFile(m.fs, m.path(filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		log.Printf("[Migrate]   -> Running: %s", filename)
		statements := splitSQLStatements(string(content))
		for i, stmt := range statements {
			if _, err := m.db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to run migration %s (statement %d): %w", filename, i+1, err)
			}
		}

		if err := m.recordMigration(ctx, filename); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}
		run++
	}

	if run > 0 {
		log.Printf("[Migrate] Ran %d new migration(s)", run)
	} else {
		log.Println("[Migrate] Database is up to date")
	}
	return nil
}

func (m *Migrator) path(name string) string {
	if m.dir == "." {
		return name
	}
	return m.dir + "/" + name
}

// pendingMigrations returns the .sql files not yet applied, sorted by name.
func pendingMigrations(files []string, applied map[string]bool) []string {
	var pending []string
	for _, f := range files {
		if !strings.HasSuffix(f, ".sql") || strings.Contains(f, "reset") || applied[f] {
			continue
		}
		pending = append(pending, f)
	}
	sort.Strings(pending)
	return pending
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *Migrator) getAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := m.db.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}
		applied[filename] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) recordMigration(ctx context.Context, filename string) error {
	_, err := m.db.Exec(ctx, `
		INSERT INTO schema_migrations (filename)
		VALUES ($1)
		ON CONFLICT (filename) DO NOTHING
	`, filename)
	return err
}

// splitSQLStatements splits a file into statements on trailing semicolons,
// keeping $$-quoted bodies intact. Comment-only chunks are dropped.
func splitSQLStatements(content string) []string {
	var statements []string
	var current strings.Builder
	dollarQuotes := 0

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt == "" || stmt == ";" || isCommentOnly(stmt) {
			return
		}
		statements = append(statements, stmt)
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		dollarQuotes += strings.Count(line, "$$")

		current.WriteString(line)
		current.WriteString("\n")

		if dollarQuotes%2 == 0 && strings.HasSuffix(trimmed, ";") && !strings.HasPrefix(trimmed, "--") {
			flush()
		}
	}
	flush()

	return statements
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
