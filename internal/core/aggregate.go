package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Aggregation maps a group key to the sum of the amounts in that group.
type Aggregation map[Key]decimal.Decimal

// Aggregate groups records by dims and sums their amounts. Every record
// lands in exactly one group. dims must be a non-empty set of PERIOD,
// CATEGORY and COST_CENTER.
func Aggregate(records []Record, dims ...Dimension) (Aggregation, error) {
	if err := validateGrouping(dims); err != nil {
		return nil, err
	}
	var byPeriod, byCategory, byCostCenter bool
	for _, d := range dims {
		switch d {
		case DimPeriod:
			byPeriod = true
		case DimCategory:
			byCategory = true
		case DimCostCenter:
			byCostCenter = true
		}
	}

	out := make(Aggregation)
	for _, r := range records {
		var k Key
		if byPeriod {
			k.Period = r.Period
		}
		if byCategory {
			k.Category = r.Category
		}
		if byCostCenter {
			k.CostCenter = r.CostCenter
		}
		out[k] = out[k].Add(r.Amount)
	}
	return out, nil
}

func validateGrouping(dims []Dimension) error {
	if len(dims) == 0 {
		return fmt.Errorf("%w: no dimensions", ErrInvalidGrouping)
	}
	seen := make(map[Dimension]struct{}, len(dims))
	for _, d := range dims {
		if !d.IsGroupable() {
			return fmt.Errorf("%w: %q", ErrInvalidGrouping, d)
		}
		if _, dup := seen[d]; dup {
			return fmt.Errorf("%w: duplicate %s", ErrInvalidGrouping, d)
		}
		seen[d] = struct{}{}
	}
	return nil
}

// Keys returns the aggregation keys in ascending order.
func (a Aggregation) Keys() []Key {
	keys := make([]Key, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Total returns the sum over all groups.
func (a Aggregation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range a {
		total = total.Add(v)
	}
	return total
}

// mustAggregate is used with the fixed groupings of the view builder.
func mustAggregate(records []Record, dims ...Dimension) Aggregation {
	agg, err := Aggregate(records, dims...)
	if err != nil {
		panic(err)
	}
	return agg
}
