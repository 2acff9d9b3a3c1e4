package table

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"elections-scraper/internal/results"
)

func makeRows(n int, schema results.PartySchema) []results.OutputRow {
	rows := make([]results.OutputRow, n)
	for i := range rows {
		votes := make([]string, len(schema))
		for j := range votes {
			votes[j] = "1 000"
		}
		rows[i] = results.OutputRow{
			Code:     "60000" + string(rune('0'+i%10)),
			Location: "Obec, Horní",
			Summary:  results.PrecinctSummary{Registered: "1 024", Envelopes: "700", ValidTotal: "695"},
			Votes:    votes,
		}
	}
	return rows
}

func TestWriteShape(t *testing.T) {
	for _, tc := range []struct{ n, p int }{{0, 0}, {1, 3}, {7, 2}, {3, 25}} {
		schema := make(results.PartySchema, tc.p)
		for j := range schema {
			schema[j] = "Strana " + string(rune('A'+j))
		}

		var buf bytes.Buffer
		require.NoError(t, NewWriter(&buf).Write(schema, makeRows(tc.n, schema)))

		out := buf.String()
		require.True(t, strings.HasSuffix(out, "\n"))
		require.Equal(t, tc.n+1, strings.Count(out, "\n"))

		records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, tc.n+1)
		for _, rec := range records {
			require.Len(t, rec, 5+tc.p)
		}
	}
}

func TestWriteConcreteScenario(t *testing.T) {
	schema := results.PartySchema{"Party A", "Party B"}
	rows := []results.OutputRow{
		{Code: "600001", Location: "Abertamy", Summary: results.PrecinctSummary{Registered: "1 024", Envelopes: "700", ValidTotal: "695"}, Votes: []string{"120", "80"}},
		{Code: "600002", Location: "Boží Dar", Summary: results.PrecinctSummary{Registered: "180", Envelopes: "90", ValidTotal: "89"}, Votes: []string{"50", "0"}},
	}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).Write(schema, rows))

	want := "code,location,registered,envelopes,valid,Party A,Party B\n" +
		"600001,Abertamy,1 024,700,695,120,80\n" +
		"600002,Boží Dar,180,90,89,50,0\n"
	require.Equal(t, want, buf.String())
}

func TestWriteRejectsRaggedRow(t *testing.T) {
	schema := results.PartySchema{"Party A", "Party B"}
	rows := []results.OutputRow{{Code: "600001", Votes: []string{"1"}}}

	err := NewWriter(&bytes.Buffer{}).Write(schema, rows)
	require.Error(t, err)
	require.Contains(t, err.Error(), "600001")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vysledky.csv")
	schema := results.PartySchema{"ANO 2011"}

	require.NoError(t, WriteFile(path, schema, makeRows(2, schema)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"Obec, Horní"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")
}

func TestWriteFileMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vysledky.csv")

	require.NoError(t, WriteFile(path, results.PartySchema{"A"}, nil))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// overwriting keeps the permissions of the existing file
	require.NoError(t, os.Chmod(path, 0o640))
	require.NoError(t, WriteFile(path, results.PartySchema{"B"}, nil))
	info, err = os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "code,location,registered,envelopes,valid,B\n", string(data))
}

func TestWriteFileFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vysledky.csv")

	err := WriteFile(path, results.PartySchema{"A"}, []results.OutputRow{{Code: "1"}})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
