package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BuildSummary reconciles both ledgers by period and category.
func BuildSummary(actual, budget []Record) []Variance {
	return Reconcile(
		mustAggregate(actual, DimPeriod, DimCategory),
		mustAggregate(budget, DimPeriod, DimCategory),
	)
}

// BuildDetail reconciles the rows of one period and cost center by category.
// Result keys carry the cost center so detail rows line up with summary rows
// of the same period and category.
func BuildDetail(actual, budget []Record, period, costCenter string) []Variance {
	keep := func(r Record) bool { return r.Period == period && r.CostCenter == costCenter }
	return Reconcile(
		mustAggregate(filterRecords(actual, keep), DimPeriod, DimCostCenter, DimCategory),
		mustAggregate(filterRecords(budget, keep), DimPeriod, DimCostCenter, DimCategory),
	)
}

// ListPeriods returns the distinct periods of a summary, sorted.
func ListPeriods(variances []Variance) []string {
	seen := make(map[string]struct{})
	for _, v := range variances {
		seen[v.Period] = struct{}{}
	}
	return sortedKeys(seen)
}

// ListCostCenters returns the cost centers that have rows in BOTH ledgers for
// the given period. A cost center with spend but no budget, or the other way
// round, is left out.
func ListCostCenters(actual, budget []Record, period string) []string {
	inActual := make(map[string]struct{})
	for _, r := range actual {
		if r.Period == period {
			inActual[r.CostCenter] = struct{}{}
		}
	}
	both := make(map[string]struct{})
	for _, r := range budget {
		if r.Period != period {
			continue
		}
		if _, ok := inActual[r.CostCenter]; ok {
			both[r.CostCenter] = struct{}{}
		}
	}
	return sortedKeys(both)
}

// ForPeriod returns the variances of one period in a new slice.
func ForPeriod(variances []Variance, period string) []Variance {
	out := make([]Variance, 0, len(variances))
	for _, v := range variances {
		if v.Period == period {
			out = append(out, v)
		}
	}
	return out
}

// Totals rolls variances up into a single row. The percentage follows the
// same rule as Reconcile.
func Totals(variances []Variance) Variance {
	actual, budget := decimal.Zero, decimal.Zero
	for _, v := range variances {
		actual = actual.Add(v.Real)
		budget = budget.Add(v.Budget)
	}
	return newVariance(Key{}, actual, budget)
}

func filterRecords(records []Record, keep func(Record) bool) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
