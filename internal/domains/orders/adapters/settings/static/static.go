package static

import (
	"context"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

var _ ports.SettingsProvider = (*Provider)(nil)

// Provider serves a settings snapshot held in memory.
type Provider struct {
	mu       sync.RWMutex
	settings ports.Settings
}

func New(settings ports.Settings) *Provider {
	return &Provider{settings: Clone(settings)}
}

// Default is the configuration used when no settings source is configured.
func Default() ports.Settings {
	return ports.Settings{
		DeliveryThreshold:   money.Cents(3000),
		StandardDeliveryFee: money.Cents(250),
		DeliveryAreas: []domain.DeliveryArea{
			{Zip: "10115", City: "Berlin"},
			{Zip: "10117", City: "Berlin"},
			{Zip: "10119", City: "Berlin"},
		},
		Discounts: []domain.Discount{
			{ID: "welcome", Name: "Welcome", Percentage: decimal.NewFromInt(10), Enabled: false},
		},
	}
}

func (p *Provider) Settings(_ context.Context) (ports.Settings, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Clone(p.settings), nil
}

// Replace swaps the snapshot returned by subsequent calls.
func (p *Provider) Replace(settings ports.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = Clone(settings)
}

// Clone copies the slices of settings so callers cannot mutate a shared snapshot.
func Clone(settings ports.Settings) ports.Settings {
	out := settings
	out.Discounts = slices.Clone(settings.Discounts)
	out.DeliveryAreas = slices.Clone(settings.DeliveryAreas)
	return out
}
