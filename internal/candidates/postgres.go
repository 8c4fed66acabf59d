package candidates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTable = "candidates"

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads candidates from a table with id, name, email and resume_text columns.
type PostgresSource struct {
	db    querier
	table string
	close func()
}

// ConnectPostgres opens a pool and verifies it.
func ConnectPostgres(ctx context.Context, databaseURL, table string) (*PostgresSource, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("database url is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSource{db: pool, table: table, close: pool.Close}, nil
}

// Close releases the pool.
func (s *PostgresSource) Close() {
	if s.close != nil {
		s.close()
	}
}

func (s *PostgresSource) List(ctx context.Context) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Text); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}

	if len(out) == 0 {
		return nil, ErrNoCandidates
	}
	return out, nil
}

func (s *PostgresSource) query() string {
	table := strings.TrimSpace(s.table)
	if table == "" {
		table = defaultTable
	}
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()

	return `SELECT id::text, COALESCE(name, ''), COALESCE(email, ''), COALESCE(resume_text, '')
		 FROM ` + ident + ` ORDER BY id`
}
