package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"

	"elections-scraper/internal/observability"
	"elections-scraper/internal/results"
)

//go:embed schema.sql
var schemaSQL string

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

// NewRepository opens the database file at dsn (":memory:" works for tests)
// and creates the tables if they do not exist.
func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database is private to its connection and
	// sqlite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

func (r *Repository) UpsertPrecinct(ctx context.Context, row results.OutputRow, schema results.PartySchema, checksum string) (isNew bool, isUpdated bool, err error) {
	if len(row.Votes) != len(schema) {
		return false, false, fmt.Errorf("precinct %s has %d votes for %d parties", row.Code, len(row.Votes), len(schema))
	}

	existing, found, err := r.GetChecksum(ctx, row.Code)
	if err != nil {
		return false, false, err
	}
	if found && existing == checksum {
		return false, false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error("Failed to rollback", "code", row.Code, "error", rbErr.Error())
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO precinct_results (code, location, registered, envelopes, valid, checksum, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			location = excluded.location,
			registered = excluded.registered,
			envelopes = excluded.envelopes,
			valid = excluded.valid,
			checksum = excluded.checksum,
			scraped_at = excluded.scraped_at`,
		row.Code, row.Location,
		row.Summary.Registered, row.Summary.Envelopes, row.Summary.ValidTotal,
		checksum, time.Now().Unix(),
	)
	if err != nil {
		return false, false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM precinct_votes WHERE code = ?`, row.Code); err != nil {
		return false, false, fmt.Errorf("failed to clear votes: %w", err)
	}

	for i, party := range schema {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO precinct_votes (code, party, position, votes) VALUES (?, ?, ?, ?)
			ON CONFLICT (code, party) DO UPDATE SET position = excluded.position, votes = excluded.votes`,
			row.Code, party, i, row.Votes[i],
		)
		if err != nil {
			return false, false, fmt.Errorf("failed to insert votes for %s: %w", party, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, false, fmt.Errorf("failed to commit: %w", err)
	}

	return !found, found, nil
}

func (r *Repository) GetChecksum(ctx context.Context, code string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var checksum string
	err := r.db.QueryRowContext(ctx, `SELECT checksum FROM precinct_results WHERE code = ?`, code).Scan(&checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query database: %w", err)
	}
	return checksum, true, nil
}

func (r *Repository) GetVotes(ctx context.Context, code string) (results.VoteTally, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT party, votes FROM precinct_votes WHERE code = ? ORDER BY position`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var votes []results.Vote
	for rows.Next() {
		var v results.Vote
		if err := rows.Scan(&v.Party, &v.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan votes: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read votes: %w", err)
	}
	return results.NewVoteTally(votes), nil
}

func (r *Repository) CountPrecincts(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM precinct_results`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
