package ports

import (
	"context"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

// Settings is the restaurant configuration read once per checkout.
type Settings struct {
	DeliveryThreshold   money.Money
	StandardDeliveryFee money.Money
	Discounts           []domain.Discount
	DeliveryAreas       []domain.DeliveryArea
	PayPalEnabled       bool
}

// SettingsProvider loads a snapshot of the restaurant settings.
type SettingsProvider interface {
	Settings(ctx context.Context) (Settings, error)
}
