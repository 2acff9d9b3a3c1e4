package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"elections-scraper/internal/results"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// RowHash returns the hex SHA-256 of the row fields joined by "|".
// Parties are positional, so the same row under a different schema order
// hashes differently.
func (g *Generator) RowHash(row results.OutputRow) string {
	hash := sha256.Sum256([]byte(strings.Join(row.Fields(), "|")))
	return hex.EncodeToString(hash[:])
}

// VerifyRowHash reports whether row still matches expectedHash.
func (g *Generator) VerifyRowHash(expectedHash string, row results.OutputRow) bool {
	return g.RowHash(row) == expectedHash
}
