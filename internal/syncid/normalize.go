// Package syncid maps arbitrary device-generated ids to canonical UUIDs.
//
// Older app builds generated short local ids like "cust-1" instead of UUIDs.
// At push time those are deterministically rewritten into UUID-shaped strings
// so the canonical tables can keep a uuid primary key. The local id is never
// mutated; only the copy applied to the canonical tables is.
package syncid

import (
	"fmt"
	"hash/fnv"
	"regexp"

	"github.com/fieldledger/fieldledger/internal/models"
)

// UUID v4 textual grammar: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx with variant
// bits in [89ab].
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// Four fixed salts. Changing any of these breaks determinism across app
// versions, so they are frozen.
var salts = [4]string{"fl-id-a", "fl-id-b", "fl-id-c", "fl-id-d"}

// IsUUID reports whether value already matches the UUID v4 grammar.
func IsUUID(value string) bool {
	return uuidV4Regex.MatchString(value)
}

// Normalize returns value unchanged if it is already a UUID, "" for ""
// (no reference), and otherwise a deterministically derived UUID-shaped
// string. The derivation hashes the value under four fixed salts and
// concatenates the low 32 bits of each hash. This is a migration convenience,
// not a cryptographic identity scheme; collisions are an accepted risk.
func Normalize(value string) string {
	if value == "" {
		return ""
	}
	if IsUUID(value) {
		return value
	}

	var hex string
	for _, salt := range salts {
		h := fnv.New64a()
		h.Write([]byte(salt))
		h.Write([]byte(value))
		hex += fmt.Sprintf("%08x", uint32(h.Sum64()))
	}

	// Re-punctuate as 8-4-4-4-12 and force version/variant nibbles so the
	// result satisfies the same grammar IsUUID checks.
	out := []byte(hex)
	out[12] = '4'
	out[16] = variantNibble(out[16])
	return string(out[0:8]) + "-" + string(out[8:12]) + "-" + string(out[12:16]) + "-" + string(out[16:20]) + "-" + string(out[20:32])
}

func variantNibble(c byte) byte {
	switch c {
	case '8', '9', 'a', 'b':
		return c
	default:
		return "89ab"[c%4]
	}
}

// NormalizeRow clones row and normalizes its id-shaped fields: the primary id
// plus any foreign-key reference the kind carries. Empty references stay
// empty.
func NormalizeRow(row models.EntityRow) models.EntityRow {
	out := row.Clone()
	switch r := out.(type) {
	case *models.Customer:
		r.ID = Normalize(r.ID)
	case *models.Part:
		r.ID = Normalize(r.ID)
	case *models.LaborItem:
		r.ID = Normalize(r.ID)
	case *models.Job:
		r.ID = Normalize(r.ID)
		r.CustomerID = Normalize(r.CustomerID)
	case *models.Quote:
		r.ID = Normalize(r.ID)
		r.CustomerID = Normalize(r.CustomerID)
		r.JobID = Normalize(r.JobID)
	case *models.Invoice:
		r.ID = Normalize(r.ID)
		r.CustomerID = Normalize(r.CustomerID)
		r.JobID = Normalize(r.JobID)
		r.QuoteID = Normalize(r.QuoteID)
	}
	return out
}
