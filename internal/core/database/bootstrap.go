package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed scripts/*.sql
var migrationFS embed.FS

// migration is one scripts/NNN_name.sql file.
type migration struct {
	version int
	file    string
}

// migrations lists the embedded scripts in version order.
func migrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationFS, "scripts")
	if err != nil {
		return nil, fmt.Errorf("read scripts: %w", err)
	}

	var out []migration
	seen := make(map[int]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.Atoi(prefix)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("migration %s: name must start with a positive version", name)
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, v)
		}
		seen[v] = name
		out = append(out, migration{version: v, file: path.Join("scripts", name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// EnsureBootstrapped applies every embedded migration newer than the highest
// version recorded in smartdoc_meta, one transaction per migration.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctxBoot, `
		CREATE TABLE IF NOT EXISTS smartdoc_meta (
		  version    INT PRIMARY KEY,
		  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctxBoot, `SELECT COALESCE(MAX(version), 0) FROM smartdoc_meta`).Scan(&current); err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}

	list, err := migrations()
	if err != nil {
		return err
	}
	for _, m := range list {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctxBoot, db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	script, err := migrationFS.ReadFile(m.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", m.file, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec %s: %w", m.file, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO smartdoc_meta (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`, m.version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record version %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", m.file, err)
	}
	return nil
}
