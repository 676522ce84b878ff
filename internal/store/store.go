/*
Package store keeps a history of scans in a SQLite database so that repeated runs against the
same domain can report lookalikes that started resolving since the previous scan.
*/
package store

/*
rxglyph — fast tool in Go for hunting homoglyph lookalike domains
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/x-stp/rxglyph/internal/core"
)

// ErrNoScans is returned when a domain has no recorded DNS-checked scan.
var ErrNoScans = errors.New("no scans recorded")

// Scan is the summary row of one run.
type Scan struct {
	ID        int64
	Domain    string
	StartedAt time.Time
	MaxEdits  int
	Limit     int
	Checked   bool
	Whois     bool
	Truncated bool
	Variants  int
	Resolving int
}

// Store is a scan history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		max_edits INTEGER NOT NULL,
		variant_limit INTEGER NOT NULL,
		checked INTEGER NOT NULL DEFAULT 0,
		whois INTEGER NOT NULL DEFAULT 0,
		truncated INTEGER NOT NULL DEFAULT 0,
		variants INTEGER NOT NULL DEFAULT 0,
		resolving INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS findings (
		scan_id INTEGER NOT NULL,
		display TEXT NOT NULL,
		ascii TEXT NOT NULL,
		resolves INTEGER NOT NULL DEFAULT 0,
		whois_queried INTEGER NOT NULL DEFAULT 0,
		whois_available INTEGER NOT NULL DEFAULT 0,
		whois_text TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (scan_id, ascii),
		FOREIGN KEY (scan_id) REFERENCES scans(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_scans_domain ON scans(domain, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveScan records scan and its findings in one transaction and returns the new scan ID.
// Variants and Resolving are derived from findings.
func (s *Store) SaveScan(ctx context.Context, scan Scan, findings []core.Finding) (int64, error) {
	if scan.StartedAt.IsZero() {
		scan.StartedAt = time.Now()
	}
	scan.Variants = len(findings)
	scan.Resolving = 0
	for _, f := range findings {
		if f.Resolves {
			scan.Resolving++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scans (domain, started_at, max_edits, variant_limit, checked, whois, truncated, variants, resolving)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, scan.Domain, scan.StartedAt.UnixNano(), scan.MaxEdits, scan.Limit,
		scan.Checked, scan.Whois, scan.Truncated, scan.Variants, scan.Resolving)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read scan id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (scan_id, display, ascii, resolves, whois_queried, whois_available, whois_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		if _, err := stmt.ExecContext(ctx, id, f.Pair.Display, f.Pair.ASCII,
			f.Resolves, f.WhoisQueried, f.WhoisAvailable, f.WhoisText); err != nil {
			return 0, fmt.Errorf("failed to insert finding %s: %w", f.Pair.ASCII, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan: %w", err)
	}
	return id, nil
}

// Scans returns up to n scans of domain, newest first. n <= 0 returns all of them.
func (s *Store) Scans(ctx context.Context, domain string, n int) ([]Scan, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, domain, started_at, max_edits, variant_limit, checked, whois, truncated, variants, resolving
		FROM scans
		WHERE domain = ?
		ORDER BY id DESC
		LIMIT ?
	`, domain, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var (
			sc      Scan
			started int64
		)
		if err := rows.Scan(&sc.ID, &sc.Domain, &started, &sc.MaxEdits, &sc.Limit,
			&sc.Checked, &sc.Whois, &sc.Truncated, &sc.Variants, &sc.Resolving); err != nil {
			return nil, fmt.Errorf("failed to scan scan row: %w", err)
		}
		sc.StartedAt = time.Unix(0, started)
		scans = append(scans, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}
	return scans, nil
}

// NewlyResolving returns the pairs that resolve in the latest DNS-checked scan of domain but
// did not resolve, or were absent, in the DNS-checked scan before it. With a single scan every
// resolving pair is new.
func (s *Store) NewlyResolving(ctx context.Context, domain string) ([]core.DomainPair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM scans WHERE domain = ? AND checked = 1 ORDER BY id DESC LIMIT 2
	`, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s: %w", domain, ErrNoScans)
	}

	latest, previous := ids[0], int64(-1)
	if len(ids) > 1 {
		previous = ids[1]
	}

	frows, err := s.db.QueryContext(ctx, `
		SELECT f.display, f.ascii
		FROM findings f
		WHERE f.scan_id = ? AND f.resolves = 1
		AND NOT EXISTS (
			SELECT 1 FROM findings p
			WHERE p.scan_id = ? AND p.ascii = f.ascii AND p.resolves = 1
		)
		ORDER BY f.display
	`, latest, previous)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer frows.Close()

	var pairs []core.DomainPair
	for frows.Next() {
		var p core.DomainPair
		if err := frows.Scan(&p.Display, &p.ASCII); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := frows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating findings: %w", err)
	}
	return pairs, nil
}
