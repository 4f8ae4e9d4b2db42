package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDiscount_IsActive(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	cases := []struct {
		name   string
		d      Discount
		active bool
	}{
		{"open window", Discount{Enabled: true}, true},
		{"disabled", Discount{Enabled: false}, false},
		{"started", Discount{Enabled: true, StartDate: &before}, true},
		{"not started", Discount{Enabled: true, StartDate: &after}, false},
		{"expired", Discount{Enabled: true, EndDate: &before}, false},
		{"in window", Discount{Enabled: true, StartDate: &before, EndDate: &after}, true},
		{"starts now", Discount{Enabled: true, StartDate: &now}, true},
		{"ends now", Discount{Enabled: true, EndDate: &now}, true},
		{"disabled in window", Discount{StartDate: &before, EndDate: &after}, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.active, tc.d.IsActive(now), tc.name)
	}
}

func TestActiveDiscounts_PreservesOrder(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	all := []Discount{
		{Name: "a", Enabled: true},
		{Name: "b", Enabled: false},
		{Name: "c", Enabled: true, EndDate: &past},
		{Name: "d", Enabled: true},
	}
	active := ActiveDiscounts(all, now)
	require.Len(t, active, 2)
	require.Equal(t, "a", active[0].Name)
	require.Equal(t, "d", active[1].Name)
}

func TestDiscount_Validate(t *testing.T) {
	require.NoError(t, Discount{Name: "x", Percentage: decimal.NewFromInt(100)}.Validate())
	require.ErrorIs(t, Discount{Name: "x", Percentage: decimal.NewFromInt(101)}.Validate(), ErrInvalidDiscount)
	require.ErrorIs(t, Discount{Percentage: decimal.NewFromInt(5)}.Validate(), ErrInvalidDiscount)
}
