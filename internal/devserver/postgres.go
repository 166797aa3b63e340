/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package devserver

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"artdao/internal/domain"
	applog "artdao/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGRepo is a Repository on PostgreSQL.
type PGRepo struct {
	db *sql.DB
}

// NewPGRepo wraps an open database whose schema is already migrated.
func NewPGRepo(db *sql.DB) *PGRepo { return &PGRepo{db: db} }

// OpenPostgres connects to url through the pgx driver, applies the embedded
// migrations and returns the repository with a close func.
func OpenPostgres(ctx context.Context, url string) (*PGRepo, func() error, error) {
	l := applog.WithOperation(applog.WithComponent("devserver"), "open_db")
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	l.Info("database ready")
	return NewPGRepo(db), db.Close, nil
}

// Migrate applies all pending up migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err == nil {
		if v, dirty, verr := m.Version(); verr == nil {
			applog.WithComponent("devserver").Info("migrated", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
		}
	}
	return err
}

const proposalColumns = `id, topic, description, style, image_url, wallet_address, status, created_at`

func (r *PGRepo) queryProposals(ctx context.Context, q string, args ...any) ([]domain.Proposal, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Proposal{}
	for rows.Next() {
		var (
			p      domain.Proposal
			status string
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Style, &p.ImageURL, &p.WalletAddress, &status, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Status = domain.Status(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepo) ListProposals(ctx context.Context, status domain.Status) ([]domain.Proposal, error) {
	return r.queryProposals(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE ($1 = '' OR upper(status) = upper($1)) ORDER BY id DESC`,
		string(status))
}

func (r *PGRepo) ProposalsBy(ctx context.Context, address string) ([]domain.Proposal, error) {
	return r.queryProposals(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE lower(wallet_address) = lower($1) ORDER BY id DESC`,
		address)
}

func (r *PGRepo) CreateProposal(ctx context.Context, p domain.Proposal) (domain.Proposal, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO proposals (topic, description, style, image_url, wallet_address, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		p.Title, p.Description, p.Style, p.ImageURL, p.WalletAddress, string(p.Status),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("insert proposal: %w", err)
	}
	return p, nil
}

func (r *PGRepo) DeleteProposal(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) GalleryItems(ctx context.Context) ([]domain.GalleryItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, artist_address, image_url, description FROM gallery_items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.GalleryItem{}
	for rows.Next() {
		var g domain.GalleryItem
		if err := rows.Scan(&g.ID, &g.Title, &g.ArtistAddress, &g.ImageURL, &g.Description); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *PGRepo) AddFeedback(ctx context.Context, itemID int64, address, message string) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO gallery_feedback (item_id, wallet_address, message)
		 SELECT id, $2, $3 FROM gallery_items WHERE id = $1`,
		itemID, address, message)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }
