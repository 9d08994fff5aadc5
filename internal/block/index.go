// Package block partitions unmatched records into comparison groups by
// canonical project name so the fuzzy tier only compares within a group.
// Without blocking the comparison cost is owners x transactions; with it
// the cost is bounded by the sum of squared block sizes, at the price of
// losing true matches whose project names disagree.
package block

import (
	"sort"

	"github.com/EmPi44/csv-matching/internal/model"
)

// Block is one comparison group: the owners and transactions sharing a
// blocking key. Both slices preserve input order.
type Block struct {
	Key          string
	Owners       []model.OwnerRecord
	Transactions []model.TransactionRecord
}

// Index holds the partition. It is built from the residual sets alone and
// carries no state from the deterministic tier.
type Index struct {
	blocks map[string]*Block

	// OwnersWithoutBlock and TransactionsWithoutBlock count records whose
	// key has no counterpart on the other side; they can never gain a
	// fuzzy candidate and are reported as an accepted recall trade-off.
	OwnersWithoutBlock       int
	TransactionsWithoutBlock int
}

// Build partitions the given residual sets by project key.
func Build(owners []model.OwnerRecord, txns []model.TransactionRecord) *Index {
	ix := &Index{blocks: make(map[string]*Block)}

	for _, o := range owners {
		b := ix.blocks[o.Project]
		if b == nil {
			b = &Block{Key: o.Project}
			ix.blocks[o.Project] = b
		}
		b.Owners = append(b.Owners, o)
	}
	for _, t := range txns {
		b := ix.blocks[t.Project]
		if b == nil {
			b = &Block{Key: t.Project}
			ix.blocks[t.Project] = b
		}
		b.Transactions = append(b.Transactions, t)
	}

	for _, b := range ix.blocks {
		if len(b.Transactions) == 0 {
			ix.OwnersWithoutBlock += len(b.Owners)
		}
		if len(b.Owners) == 0 {
			ix.TransactionsWithoutBlock += len(b.Transactions)
		}
	}
	return ix
}

// Blocks returns the groups containing both owners and transactions, in
// deterministic key order.
func (ix *Index) Blocks() []Block {
	keys := make([]string, 0, len(ix.blocks))
	for k, b := range ix.blocks {
		if len(b.Owners) > 0 && len(b.Transactions) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]Block, 0, len(keys))
	for _, k := range keys {
		out = append(out, *ix.blocks[k])
	}
	return out
}

// Comparisons returns the total candidate-pair count the partition will
// generate, for cost reporting.
func (ix *Index) Comparisons() int {
	total := 0
	for _, b := range ix.blocks {
		total += len(b.Owners) * len(b.Transactions)
	}
	return total
}
