package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"elections-scraper/internal/observability"
	"elections-scraper/internal/results"
)

const schemaSQL = `
IF OBJECT_ID('TblPrecinctResults', 'U') IS NULL
CREATE TABLE TblPrecinctResults (
	[Code]       NVARCHAR(16)  NOT NULL PRIMARY KEY,
	[Location]   NVARCHAR(256) NOT NULL,
	[Registered] NVARCHAR(32)  NOT NULL,
	[Envelopes]  NVARCHAR(32)  NOT NULL,
	[Valid]      NVARCHAR(32)  NOT NULL,
	[CheckSum]   CHAR(64)      NOT NULL,
	[ScrapedAt]  DATETIME2     NOT NULL
);
IF OBJECT_ID('TblPrecinctVotes', 'U') IS NULL
CREATE TABLE TblPrecinctVotes (
	[Code]     NVARCHAR(16)  NOT NULL,
	[Party]    NVARCHAR(256) NOT NULL,
	[Position] INT           NOT NULL,
	[Votes]    NVARCHAR(32)  NOT NULL,
	PRIMARY KEY ([Code], [Party])
);`

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

// UpsertPrecinct merges the precinct row and replaces its votes in one
// transaction.
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

	query := `
		MERGE INTO TblPrecinctResults AS target
		USING (SELECT @Code AS Code) AS source
		ON target.[Code] = source.Code
		WHEN MATCHED THEN
			UPDATE SET
				[Location] = @Location,
				[Registered] = @Registered,
				[Envelopes] = @Envelopes,
				[Valid] = @Valid,
				[CheckSum] = @CheckSum,
				[ScrapedAt] = @ScrapedAt
		WHEN NOT MATCHED THEN
			INSERT ([Code], [Location], [Registered], [Envelopes], [Valid], [CheckSum], [ScrapedAt])
			VALUES (@Code, @Location, @Registered, @Envelopes, @Valid, @CheckSum, @ScrapedAt);
	`

	_, err = tx.ExecContext(ctx, query,
		sql.Named("Code", row.Code),
		sql.Named("Location", row.Location),
		sql.Named("Registered", row.Summary.Registered),
		sql.Named("Envelopes", row.Summary.Envelopes),
		sql.Named("Valid", row.Summary.ValidTotal),
		sql.Named("CheckSum", checksum),
		sql.Named("ScrapedAt", time.Now().UTC()),
	)
	if err != nil {
		return false, false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM TblPrecinctVotes WHERE [Code] = @Code`, sql.Named("Code", row.Code)); err != nil {
		return false, false, fmt.Errorf("failed to clear votes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO TblPrecinctVotes ([Code], [Party], [Position], [Votes])
		VALUES (@Code, @Party, @Position, @Votes)`)
	if err != nil {
		return false, false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	for i, party := range schema {
		_, err = stmt.ExecContext(ctx,
			sql.Named("Code", row.Code),
			sql.Named("Party", party),
			sql.Named("Position", i),
			sql.Named("Votes", row.Votes[i]),
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
	err := r.db.QueryRowContext(ctx,
		`SELECT [CheckSum] FROM TblPrecinctResults WHERE [Code] = @Code`,
		sql.Named("Code", code),
	).Scan(&checksum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query database: %w", err)
	}
	return checksum, true, nil
}

func (r *Repository) GetVotes(ctx context.Context, code string) (results.VoteTally, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT [Party], [Votes] FROM TblPrecinctVotes WHERE [Code] = @Code ORDER BY [Position]`,
		sql.Named("Code", code),
	)
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
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM TblPrecinctResults`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
