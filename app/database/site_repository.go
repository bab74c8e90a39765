package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ SiteRepositoryInterface = (*SiteRepository)(nil)

// SiteRepository handles the per-domain crawl history.
type SiteRepository struct {
	db *DB
}

func NewSiteRepository(db *DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// RecordSites upserts one row per domain in a single transaction. first_seen
// is written once; everything else reflects the latest visit.
func (r *SiteRepository) RecordSites(ctx context.Context, sites []Site) error {
	if len(sites) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sites (domain, source, first_seen, last_seen, fetch_status, status_code, title, relevance, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (domain) DO UPDATE SET
			source = excluded.source,
			last_seen = excluded.last_seen,
			fetch_status = excluded.fetch_status,
			status_code = excluded.status_code,
			title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE sites.title END,
			relevance = excluded.relevance,
			outcome = excluded.outcome
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare site upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range sites {
		seen := formatTime(s.LastSeen)
		_, err := stmt.ExecContext(ctx,
			s.Domain, s.Source, seen, seen,
			s.FetchStatus, s.StatusCode, s.Title, s.Relevance, s.Outcome)
		if err != nil {
			return fmt.Errorf("failed to record site %s: %w", s.Domain, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit site history: %w", err)
	}
	return nil
}

// GetSite returns nil when the domain has never been recorded.
func (r *SiteRepository) GetSite(ctx context.Context, domain string) (*Site, error) {
	var (
		s                   Site
		firstSeen, lastSeen string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT domain, source, first_seen, last_seen, fetch_status, status_code, title, relevance, outcome
		FROM sites
		WHERE domain = ?
	`, domain).Scan(
		&s.Domain, &s.Source, &firstSeen, &lastSeen,
		&s.FetchStatus, &s.StatusCode, &s.Title, &s.Relevance, &s.Outcome,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}

	if s.FirstSeen, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if s.LastSeen, err = parseTime(lastSeen); err != nil {
		return nil, err
	}
	return &s, nil
}

// SeenSince returns the domains visited at or after since.
func (r *SiteRepository) SeenSince(ctx context.Context, since time.Time) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT domain FROM sites WHERE last_seen >= ?`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sites: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		seen[domain] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating site rows: %w", err)
	}

	return seen, nil
}

func (r *SiteRepository) CountSites(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return n, nil
}
