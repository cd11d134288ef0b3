package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"variaciones/internal/core"
)

// ParseTable converts a header-first matrix into ledger records.
//
// Columns are located case-insensitively. Fully blank rows are skipped. Any
// other row with an empty dimension or amount rejects the whole table, as
// does an amount that is not a number. Row numbers in errors are 1-based
// and count the header, so they match the spreadsheet's row labels.
func ParseTable(table string, rows [][]string, cols Columns) ([]core.Record, error) {
	cols = cols.WithDefaults()

	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	idx := map[core.Dimension]int{
		core.DimPeriod:     indexOf(header, cols.Period),
		core.DimCategory:   indexOf(header, cols.Category),
		core.DimCostCenter: indexOf(header, cols.CostCenter),
		core.DimAmount:     indexOf(header, cols.Amount),
	}
	for _, d := range []core.Dimension{core.DimPeriod, core.DimCategory, core.DimCostCenter, core.DimAmount} {
		if idx[d] == -1 {
			return nil, &core.MissingDimensionError{Table: table, Row: 0, Field: d}
		}
	}

	records := make([]core.Record, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		line := i + 1

		values := make(map[core.Dimension]string, len(idx))
		for _, d := range []core.Dimension{core.DimPeriod, core.DimCategory, core.DimCostCenter, core.DimAmount} {
			v := strings.TrimSpace(safeGet(row, idx[d]))
			if v == "" {
				return nil, &core.MissingDimensionError{Table: table, Row: line, Field: d}
			}
			values[d] = v
		}

		amount, err := core.ParseAmount(values[core.DimAmount])
		if err != nil {
			return nil, &core.InvalidAmountError{Table: table, Row: line, Value: values[core.DimAmount]}
		}
		records = append(records, core.Record{
			Period:     values[core.DimPeriod],
			Category:   values[core.DimCategory],
			CostCenter: values[core.DimCostCenter],
			Amount:     amount,
		})
	}
	return records, nil
}

// ToStrings renders API cell values as trimmed strings. Numbers keep every
// significant digit.
func ToStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	return out
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ColumnIndex returns the position of name in header, or -1.
func ColumnIndex(header []string, name string) int { return indexOf(header, name) }
