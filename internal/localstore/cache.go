/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package localstore keeps the last fetched proposal list in a local SQLite
// database so the client can show it before the first network round trip.
// The backend stays the source of truth; the cache is replaced wholesale on
// every successful list.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"artdao/internal/domain"
	applog "artdao/internal/log"
	"artdao/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the local SQLite schema. Bump it together with a new
// step in runMigrations.
const schemaVersion = 2

// Cache is an open proposal cache.
type Cache struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Open creates or opens the cache at path, enables WAL mode, and brings the
// schema up to date. A corrupt database file is moved aside and recreated.
func Open(ctx context.Context, path string) (*Cache, error) {
	l := applog.WithOperation(applog.WithComponent("localstore"), "open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := openDB(ctx, path)
	if err == nil && !healthy(ctx, db) {
		_ = db.Close()
		err = errors.New("quick_check failed")
	}
	if err != nil {
		l.Warn("cache unusable, rebuilding", slog.Any("err", err))
		backupFile(path)
		_ = os.Remove(path)
		if db, err = openDB(ctx, path); err != nil {
			l.Error("cache rebuild failed", slog.Any("err", err))
			return nil, err
		}
	}
	l.Debug("cache ready")
	return &Cache{db: db, path: path, log: applog.WithComponent("localstore")}, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	for _, step := range []func(context.Context, *sql.DB) error{ensureMetaAndVersion, ensureSchema, runMigrations} {
		if err := step(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func healthy(ctx context.Context, db *sql.DB) bool {
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(chk), "ok")
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh databases start at 1 and migrate forward like old ones
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, version.String(), now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS proposals (
			id             INTEGER PRIMARY KEY,
			position       INTEGER NOT NULL,
			title          TEXT    NOT NULL,
			description    TEXT    NOT NULL DEFAULT '',
			style          TEXT    NOT NULL DEFAULT '',
			image_url      TEXT    NOT NULL DEFAULT '',
			wallet_address TEXT    NOT NULL DEFAULT '',
			status         TEXT    NOT NULL DEFAULT '',
			created_at     TEXT
		);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_proposals USING fts5(
			title, description,
			content='proposals', content_rowid='id',
			tokenize = 'unicode61'
		);`,
		`CREATE TRIGGER IF NOT EXISTS proposals_ai AFTER INSERT ON proposals BEGIN
			INSERT INTO fts_proposals(rowid, title, description) VALUES (new.id, new.title, new.description);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS proposals_ad AFTER DELETE ON proposals BEGIN
			INSERT INTO fts_proposals(fts_proposals, rowid, title, description) VALUES ('delete', old.id, old.title, old.description);
		END;`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status);`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// backupFile copies the database into a timestamped file in a backups
// directory next to it.
func backupFile(path string) {
	bdir := filepath.Join(filepath.Dir(path), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	if data, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp)), data, 0o644)
	}
}

// Path returns the database file path.
func (c *Cache) Path() string { return c.path }

// Close closes the database.
func (c *Cache) Close() error { return c.db.Close() }

// SchemaVersion returns the schema version recorded in the database.
func (c *Cache) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := c.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

const filterKey = "proposal_filter"

// ReplaceProposals stores list as the complete cached set, remembering the
// status filter it was fetched with.
func (c *Cache) ReplaceProposals(ctx context.Context, status domain.Status, list []domain.Proposal) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM proposals`); err != nil {
		return fmt.Errorf("clear proposals: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO proposals
		(id, position, title, description, style, image_url, wallet_address, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, p := range list {
		var created any
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, i, p.Title, p.Description, p.Style, p.ImageURL, p.WalletAddress, string(p.Status), created); err != nil {
			return fmt.Errorf("insert proposal %d: %w", p.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, filterKey, string(status)); err != nil {
		return fmt.Errorf("store filter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	c.log.Debug("proposals cached", slog.Int("count", len(list)), slog.String("status", string(status)))
	return nil
}

// LoadProposals returns the cached list in server order and the filter it
// was fetched with. An empty cache yields an empty, non-nil list.
func (c *Cache) LoadProposals(ctx context.Context) (domain.Status, []domain.Proposal, error) {
	var status string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, filterKey).Scan(&status)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("read filter: %w", err)
	}
	rows, err := c.db.QueryContext(ctx, `SELECT id, title, description, style, image_url, wallet_address, status, created_at
		FROM proposals ORDER BY position`)
	if err != nil {
		return "", nil, fmt.Errorf("query proposals: %w", err)
	}
	list, err := scanProposals(rows)
	return domain.Status(status), list, err
}

// Search runs a full-text query over cached titles and descriptions.
func (c *Cache) Search(ctx context.Context, query string) ([]domain.Proposal, error) {
	q := ftsQuery(query)
	if q == "" {
		return []domain.Proposal{}, nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT p.id, p.title, p.description, p.style, p.image_url, p.wallet_address, p.status, p.created_at
		FROM fts_proposals f JOIN proposals p ON p.id = f.rowid
		WHERE fts_proposals MATCH ? ORDER BY rank`, q)
	if err != nil {
		return nil, fmt.Errorf("search proposals: %w", err)
	}
	return scanProposals(rows)
}

// ftsQuery turns free text into a prefix query over quoted terms, so user
// input can never be parsed as FTS syntax.
func ftsQuery(s string) string {
	var terms []string
	for _, f := range strings.Fields(s) {
		f = strings.ReplaceAll(f, `"`, "")
		if f != "" {
			terms = append(terms, `"`+f+`"*`)
		}
	}
	return strings.Join(terms, " ")
}

func scanProposals(rows *sql.Rows) ([]domain.Proposal, error) {
	defer rows.Close()
	out := []domain.Proposal{}
	for rows.Next() {
		var (
			p       domain.Proposal
			status  string
			created sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Style, &p.ImageURL, &p.WalletAddress, &status, &created); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		p.Status = domain.Status(status)
		if created.Valid {
			if t, err := time.Parse(time.RFC3339Nano, created.String); err == nil {
				p.CreatedAt = t
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
