package core

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func rec(period, category, costCenter, amount string) Record {
	return Record{Period: period, Category: category, CostCenter: costCenter, Amount: decimal.RequireFromString(amount)}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// randomRecords builds a reproducible ledger with cents-precision amounts,
// including negatives and zeros.
func randomRecords(seed int64, n int) []Record {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			Period:     fmt.Sprintf("2024-%02d", rng.Intn(4)+1),
			Category:   fmt.Sprintf("Cat%d", rng.Intn(5)),
			CostCenter: fmt.Sprintf("CC%d", rng.Intn(3)),
			Amount:     decimal.New(rng.Int63n(2_000_000)-500_000, -2),
		}
	}
	return out
}

func sumAmounts(records []Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}
