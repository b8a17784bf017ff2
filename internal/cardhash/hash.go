// Package cardhash derives a stable identity for a card from its content.
package cardhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/lexideck/internal/domain"
)

// Normalize concatenates the card's text fields after cleaning each part.
// Each field is lowercased, trimmed and has CRLF line endings converted
// before the fields are joined with a newline.
func Normalize(card domain.MemoryCard) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.TrimSpace(p)
	}

	// Joined with a newline so "ab"+"c" and "a"+"bc" stay distinct.
	return strings.Join([]string{
		normalizePart(card.Word),
		normalizePart(card.Translation),
		normalizePart(card.Note),
	}, "\n")
}

// Hash returns the hex SHA-256 of the normalized card. Scheduling state does
// not contribute, so a card keeps its identity across reviews.
func Hash(card domain.MemoryCard) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}
