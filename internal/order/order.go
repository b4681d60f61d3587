// Package order sorts a mixed batch of change events into a schema-safe
// apply order.
package order

import (
	"sort"

	"github.com/fieldledger/fieldledger/internal/models"
)

// Fixed precedence over the six entity kinds, mirroring the foreign-key
// chain: customers, parts and labor items are independent; jobs reference a
// customer; quotes reference a job and customer; invoices reference all
// three. The schema is static and acyclic, so a rank table is enough and no
// dependency graph is built.
var kindRank = map[models.EntityKind]int{
	models.KindCustomer:  0,
	models.KindPart:      0,
	models.KindLaborItem: 0,
	models.KindJob:       1,
	models.KindQuote:     2,
	models.KindInvoice:   3,
}

// Rank returns the apply precedence of a kind. Unknown kinds sort last.
func Rank(kind models.EntityKind) int {
	if r, ok := kindRank[kind]; ok {
		return r
	}
	return len(kindRank)
}

// Sort orders events so parents are applied before children. The sort is
// stable: events of equal rank keep their original insertion order, which
// preserves causality within a kind (e.g. update before delete of the same
// entity).
func Sort(events []models.ChangeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return Rank(events[i].Kind) < Rank(events[j].Kind)
	})
}
