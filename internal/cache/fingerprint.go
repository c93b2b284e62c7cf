package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/kailas-cloud/opskb/internal/domain"
)

// Fingerprint derives the cache key for a query. Queries differing only in
// case or whitespace fingerprint identically; filters are serialized in a
// fixed field order so key ordering can never matter.
func Fingerprint(query string, filters domain.Filters, maxResults int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")

	var b strings.Builder
	b.WriteString(normalized)
	b.WriteByte('\n')
	b.WriteString("category=")
	b.WriteString(strings.ToLower(filters.Category))
	b.WriteByte('\n')
	b.WriteString("doc_type=")
	b.WriteString(strings.ToLower(filters.DocType))
	b.WriteByte('\n')
	b.WriteString("max=")
	b.WriteString(strconv.Itoa(maxResults))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
