package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileOuterJoin(t *testing.T) {
	actual := Aggregation{
		{Period: "P1", Category: "A"}: decimal.NewFromInt(100),
		{Period: "P1", Category: "B"}: decimal.NewFromInt(50),
	}
	budget := Aggregation{
		{Period: "P1", Category: "A"}: decimal.NewFromInt(80),
		{Period: "P1", Category: "C"}: decimal.NewFromInt(40),
	}

	got := Reconcile(actual, budget)
	require.Len(t, got, 3)

	assert.Equal(t, Key{Period: "P1", Category: "A"}, got[0].Key)
	assert.True(t, got[0].Abs.Equal(decimal.NewFromInt(20)))
	require.True(t, got[0].HasPct())
	assert.True(t, got[0].Pct.Decimal.Equal(decimal.NewFromInt(25)))

	assert.Equal(t, "B", got[1].Category)
	assert.True(t, got[1].Budget.IsZero())
	assert.True(t, got[1].Abs.Equal(decimal.NewFromInt(50)))
	assert.False(t, got[1].HasPct())

	assert.Equal(t, "C", got[2].Category)
	assert.True(t, got[2].Real.IsZero())
	assert.True(t, got[2].Abs.Equal(decimal.NewFromInt(-40)))
	require.True(t, got[2].HasPct())
	assert.True(t, got[2].Pct.Decimal.Equal(decimal.NewFromInt(-100)))
	assert.Equal(t, -1, got[2].Sign())
}

func TestReconcileBothEmpty(t *testing.T) {
	got := Reconcile(Aggregation{}, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReconcileZeroBudgetAndZeroReal(t *testing.T) {
	k := Key{Period: "P1", Category: "A"}
	got := Reconcile(Aggregation{k: decimal.Zero}, Aggregation{k: decimal.RequireFromString("0.00")})
	require.Len(t, got, 1)
	assert.True(t, got[0].Abs.IsZero())
	assert.False(t, got[0].HasPct(), "a zero budget never yields a percentage")
	assert.Equal(t, 0, got[0].Sign())
}

func TestReconcileNegativeBudgetKeepsSignedDivision(t *testing.T) {
	k := Key{Period: "P1", Category: "Refunds"}
	got := Reconcile(Aggregation{k: decimal.NewFromInt(-50)}, Aggregation{k: decimal.NewFromInt(-100)})
	require.Len(t, got, 1)
	// (-50 - -100) / -100 * 100
	assert.True(t, got[0].Abs.Equal(decimal.NewFromInt(50)))
	assert.True(t, got[0].Pct.Decimal.Equal(decimal.NewFromInt(-50)))
}

func TestReconcileProperties(t *testing.T) {
	tolerance := decimal.New(1, -9)
	for seed := int64(1); seed <= 25; seed++ {
		actual, err := Aggregate(randomRecords(seed, 120), DimPeriod, DimCategory)
		require.NoError(t, err)
		budget, err := Aggregate(randomRecords(seed+1000, 90), DimPeriod, DimCategory)
		require.NoError(t, err)

		got := Reconcile(actual, budget)

		seen := make(map[Key]int)
		for i, v := range got {
			seen[v.Key]++
			if i > 0 {
				assert.True(t, got[i-1].Key.Less(v.Key), "output must be strictly ordered")
			}
			assert.True(t, v.Real.Equal(actual[v.Key]))
			assert.True(t, v.Budget.Equal(budget[v.Key]))
			assert.True(t, v.Abs.Equal(v.Real.Sub(v.Budget)))
			assert.Equal(t, !v.Budget.IsZero(), v.HasPct())
			if v.HasPct() {
				// Pct * Budget / 100 must give back Abs.
				back := v.Pct.Decimal.Mul(v.Budget).Div(decimal.NewFromInt(100))
				assert.True(t, back.Sub(v.Abs).Abs().LessThanOrEqual(tolerance.Mul(v.Budget.Abs().Add(decimal.NewFromInt(1)))),
					"seed %d key %s: %s vs %s", seed, v.Key, back, v.Abs)
			}
		}
		for k := range actual {
			assert.Equal(t, 1, seen[k], "key %s from actual", k)
		}
		for k := range budget {
			assert.Equal(t, 1, seen[k], "key %s from budget", k)
		}
		assert.Len(t, seen, len(got))
	}
}
