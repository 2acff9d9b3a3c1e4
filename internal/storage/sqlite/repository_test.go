package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"elections-scraper/internal/observability"
	"elections-scraper/internal/results"
)

func setup(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(":memory:", 5*time.Second, observability.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleRow() results.OutputRow {
	return results.OutputRow{
		Code:     "600001",
		Location: "Abertamy",
		Summary:  results.PrecinctSummary{Registered: "1 024", Envelopes: "700", ValidTotal: "695"},
		Votes:    []string{"120", "80"},
	}
}

func TestUpsertPrecinct(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	schema := results.PartySchema{"Party A", "Party B"}

	isNew, isUpdated, err := repo.UpsertPrecinct(ctx, sampleRow(), schema, "hash-1")
	require.NoError(t, err)
	require.True(t, isNew)
	require.False(t, isUpdated)

	// same checksum: nothing written
	isNew, isUpdated, err = repo.UpsertPrecinct(ctx, sampleRow(), schema, "hash-1")
	require.NoError(t, err)
	require.False(t, isNew)
	require.False(t, isUpdated)

	changed := sampleRow()
	changed.Votes = []string{"121", "79"}
	isNew, isUpdated, err = repo.UpsertPrecinct(ctx, changed, schema, "hash-2")
	require.NoError(t, err)
	require.False(t, isNew)
	require.True(t, isUpdated)

	checksum, found, err := repo.GetChecksum(ctx, "600001")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "hash-2", checksum)

	tally, err := repo.GetVotes(ctx, "600001")
	require.NoError(t, err)
	require.Equal(t, results.VoteTally{"Party A": "121", "Party B": "79"}, tally)

	count, err := repo.CountPrecincts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestUpsertPrecinctSchemaChangeReplacesVotes(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	_, _, err := repo.UpsertPrecinct(ctx, sampleRow(), results.PartySchema{"Party A", "Party B"}, "hash-1")
	require.NoError(t, err)

	row := sampleRow()
	row.Votes = []string{"7"}
	_, _, err = repo.UpsertPrecinct(ctx, row, results.PartySchema{"Party C"}, "hash-2")
	require.NoError(t, err)

	tally, err := repo.GetVotes(ctx, "600001")
	require.NoError(t, err)
	require.Equal(t, results.VoteTally{"Party C": "7"}, tally)
}

func TestUpsertPrecinctRejectsRaggedRow(t *testing.T) {
	repo := setup(t)

	_, _, err := repo.UpsertPrecinct(context.Background(), sampleRow(), results.PartySchema{"Party A"}, "hash")
	require.Error(t, err)

	count, err := repo.CountPrecincts(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestGetChecksumUnknown(t *testing.T) {
	repo := setup(t)

	_, found, err := repo.GetChecksum(context.Background(), "999999")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRepositoryPersistsToFile(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "results.db")
	ctx := context.Background()

	repo, err := NewRepository(dsn, 5*time.Second, observability.NewNop())
	require.NoError(t, err)
	_, _, err = repo.UpsertPrecinct(ctx, sampleRow(), results.PartySchema{"Party A", "Party B"}, "hash-1")
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened, err := NewRepository(dsn, 5*time.Second, observability.NewNop())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	checksum, found, err := reopened.GetChecksum(ctx, "600001")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "hash-1", checksum)
}
