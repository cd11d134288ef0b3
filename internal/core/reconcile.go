package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Variance is one reconciled group.
type Variance struct {
	Key
	Real   decimal.Decimal
	Budget decimal.Decimal
	Abs    decimal.Decimal
	// Pct is valid only when Budget is not zero.
	Pct decimal.NullDecimal
}

// Reconcile outer-joins two aggregations on their keys. A key present on one
// side only gets zero on the other. The result is ordered by key.
func Reconcile(actual, budget Aggregation) []Variance {
	keys := make(map[Key]struct{}, len(actual)+len(budget))
	for k := range actual {
		keys[k] = struct{}{}
	}
	for k := range budget {
		keys[k] = struct{}{}
	}

	out := make([]Variance, 0, len(keys))
	for k := range keys {
		// Missing map entries are the zero Decimal.
		out = append(out, newVariance(k, actual[k], budget[k]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

func newVariance(k Key, actual, budget decimal.Decimal) Variance {
	v := Variance{Key: k, Real: actual, Budget: budget, Abs: actual.Sub(budget)}
	v.Pct = percentOf(v.Abs, budget)
	return v
}

// percentOf returns abs/base*100, keeping the sign of base.
func percentOf(abs, base decimal.Decimal) decimal.NullDecimal {
	if base.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(abs.Div(base).Mul(hundred))
}

// HasPct reports whether the percentage is defined.
func (v Variance) HasPct() bool { return v.Pct.Valid }

// Sign returns the sign of the absolute variance.
func (v Variance) Sign() int { return v.Abs.Sign() }
