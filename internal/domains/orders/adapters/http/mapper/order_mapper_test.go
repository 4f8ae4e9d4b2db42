package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

func TestToCreateOrderInput_NormalizesInput(t *testing.T) {
	var req CheckoutRequest
	body := `{
		"customer": {"name": " Ada ", "phone": "030 1234567", "email": "ada@example.com",
			"address": {"street": "Main St 1", "zip": " 10115 ", "city": "Berlin"}},
		"items": [{"menuItemId": "m1", "name": "Margherita", "quantity": 2, "sizeName": "L",
			"sizePrice": 9.5, "extras": [{"name": "Basil", "price": "0.50"}], "lineTotal": 1}],
		"orderType": "Delivery",
		"paymentMethod": "CASH"
	}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	input := ToCreateOrderInput(req)

	assert.Equal(t, "Ada", input.Customer.Name)
	require.NotNil(t, input.Customer.Address)
	assert.Equal(t, "10115", input.Customer.Address.Zip)
	assert.Equal(t, domain.OrderType("delivery"), input.OrderType)
	assert.Equal(t, domain.PaymentMethod("cash"), input.PaymentMethod)
	require.Len(t, input.Lines, 1)
	assert.Equal(t, money.Cents(950), input.Lines[0].SizePrice)
	assert.Equal(t, money.Cents(2000), input.Lines[0].Total())
}

func TestFromOrder_IncludesLabelsAndLineTotals(t *testing.T) {
	minutes := 90
	created := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	order := &domain.Order{
		ID:        "o-1",
		Status:    domain.StatusPending,
		OrderType: domain.OrderTypePickup,
		Customer:  domain.Customer{Name: "Ada", Email: "ada@example.com", Phone: "0301234567"},
		Lines: []domain.OrderLine{{
			MenuItemID: "m1", Name: "Salami", Quantity: 3, SizePrice: money.Cents(800),
			Extras: []domain.Extra{{Name: "Olives", Price: money.Cents(100)}},
		}},
		Subtotal:         money.Cents(2700),
		TotalAmount:      money.Cents(2700),
		AppliedDiscounts: []domain.AppliedDiscount{{Name: "Lunch", Percentage: decimal.NewFromInt(10)}},
		EstimatedMinutes: &minutes,
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	out := FromOrder(order)

	assert.Equal(t, "pending", out.Status)
	assert.Equal(t, domain.StatusPending.Label(), out.StatusLabel)
	assert.Equal(t, "1 hour 30 minutes", out.EstimatedTimeLabel)
	require.Len(t, out.Items, 1)
	assert.Equal(t, money.Cents(2700), out.Items[0].LineTotal)
	require.Len(t, out.AppliedDiscounts, 1)

	minutes = 5
	assert.Equal(t, 90, *out.EstimatedMinutes)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"totalAmount":27`)
	assert.NotContains(t, string(raw), `"address"`)
}

func TestFromOrder_Nil(t *testing.T) {
	assert.Nil(t, FromOrder(nil))
}

func TestToListFilter(t *testing.T) {
	filter, err := ToListFilter([]string{"pending,ready", " preparing "}, "2024-01-01", "2024-01-31")
	require.NoError(t, err)

	assert.Equal(t, []domain.Status{domain.StatusPending, domain.StatusReady, domain.StatusPreparing}, filter.Statuses)
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *filter.From)
	assert.True(t, filter.To.After(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)))
	assert.True(t, filter.To.Before(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestToListFilter_Invalid(t *testing.T) {
	_, err := ToListFilter([]string{"shipped"}, "", "")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = ToListFilter(nil, "01/02/2024", "")
	require.Error(t, err)
}

func TestFromDiscounts_DateOnly(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out := FromDiscounts([]domain.Discount{{ID: "d1", Name: "Summer", Percentage: decimal.NewFromInt(15), StartDate: &start}})

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"startDate":"2024-06-01"`)
	assert.NotContains(t, string(raw), `endDate`)
}
