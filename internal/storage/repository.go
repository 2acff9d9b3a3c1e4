package storage

import (
	"context"

	"elections-scraper/internal/results"
)

// Repository persists assembled precinct rows. Votes are stored per party so
// runs with different party schemas can share one database.
type Repository interface {
	// UpsertPrecinct saves the row and its votes. An unchanged checksum skips
	// the write and reports (false, false, nil).
	UpsertPrecinct(ctx context.Context, row results.OutputRow, schema results.PartySchema, checksum string) (isNew bool, isUpdated bool, err error)

	// GetChecksum returns the stored checksum of a precinct, if any.
	GetChecksum(ctx context.Context, code string) (checksum string, found bool, err error)

	// GetVotes returns the stored party → votes mapping of a precinct.
	GetVotes(ctx context.Context, code string) (results.VoteTally, error)

	// CountPrecincts returns the number of stored precincts.
	CountPrecincts(ctx context.Context) (int, error)

	Close() error
}
