package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValidate(t *testing.T) {
	ok := Record{Period: "2024-01", Category: "Rent", CostCenter: "CC1", Amount: decimal.NewFromInt(1)}
	require.NoError(t, ok.Validate())

	for _, r := range []Record{
		{Category: "Rent", CostCenter: "CC1"},
		{Period: "2024-01", Category: " ", CostCenter: "CC1"},
		{Period: "2024-01", Category: "Rent"},
	} {
		assert.ErrorIs(t, r.Validate(), ErrMissingDimension, "record %+v", r)
	}
}

func TestLedgersValidateReportsTableAndRow(t *testing.T) {
	l := Ledgers{
		Real: []Record{{Period: "P1", Category: "C", CostCenter: "X"}},
		Budget: []Record{
			{Period: "P1", Category: "C", CostCenter: "X"},
			{Period: "P1", CostCenter: "X"},
		},
	}
	err := l.Validate()
	require.Error(t, err)

	var mde *MissingDimensionError
	require.True(t, errors.As(err, &mde))
	assert.Equal(t, TableBudget, mde.Table)
	assert.Equal(t, 2, mde.Row)
	assert.Equal(t, DimCategory, mde.Field)
	assert.ErrorIs(t, err, ErrMissingDimension)
	assert.Equal(t, "BUDGET row 2: empty CATEGORY", err.Error())
}

func TestMissingDimensionErrorHeader(t *testing.T) {
	err := &MissingDimensionError{Table: TableReal, Field: DimAmount}
	assert.Equal(t, "REAL: column AMOUNT not found in header", err.Error())
}

func TestKeyOrdering(t *testing.T) {
	a := Key{Period: "2024-01", Category: "B"}
	b := Key{Period: "2024-01", Category: "C"}
	c := Key{Period: "2024-02", Category: "A"}
	d := Key{Period: "2024-02", Category: "A", CostCenter: "X"}

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.True(t, c.Less(d))
	assert.False(t, d.Less(c))
	assert.False(t, a.Less(a))
	assert.Equal(t, "2024-02/A/X", d.String())
}
