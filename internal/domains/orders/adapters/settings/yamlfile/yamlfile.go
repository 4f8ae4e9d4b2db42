package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

var _ ports.SettingsProvider = (*Provider)(nil)

var ErrInvalidSettings = errors.New("invalid settings file")

type document struct {
	DeliveryThreshold   string         `yaml:"deliveryThreshold"`
	StandardDeliveryFee string         `yaml:"standardDeliveryFee"`
	PayPalEnabled       bool           `yaml:"paypalEnabled"`
	Discounts           []discountNode `yaml:"discounts"`
	DeliveryAreas       []areaNode     `yaml:"deliveryAreas"`
}

type discountNode struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Percentage string `yaml:"percentage"`
	StartDate  string `yaml:"startDate"`
	EndDate    string `yaml:"endDate"`
	Enabled    *bool  `yaml:"enabled"`
}

type areaNode struct {
	Zip  string `yaml:"zip"`
	City string `yaml:"city"`
}

// Provider reads restaurant settings from a YAML file, re-reading it when its
// modification time changes.
type Provider struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	cached  ports.Settings
	loaded  bool
}

func New(path string) *Provider {
	return &Provider{path: path}
}

func (p *Provider) Settings(_ context.Context) (ports.Settings, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return ports.Settings{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded && info.ModTime().Equal(p.modTime) {
		return p.cached, nil
	}
	settings, err := Load(p.path)
	if err != nil {
		return ports.Settings{}, err
	}
	p.cached = settings
	p.modTime = info.ModTime()
	p.loaded = true
	return settings, nil
}

// Load reads and validates the settings file at path.
func Load(path string) (ports.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return ports.Settings{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a settings document.
func Parse(r io.Reader) (ports.Settings, error) {
	var doc document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return ports.Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return doc.toSettings()
}

func (d document) toSettings() (ports.Settings, error) {
	var settings ports.Settings
	var err error
	if settings.DeliveryThreshold, err = parseAmount("deliveryThreshold", d.DeliveryThreshold); err != nil {
		return ports.Settings{}, err
	}
	if settings.StandardDeliveryFee, err = parseAmount("standardDeliveryFee", d.StandardDeliveryFee); err != nil {
		return ports.Settings{}, err
	}
	settings.PayPalEnabled = d.PayPalEnabled

	for i, node := range d.Discounts {
		discount, err := node.toDomain()
		if err != nil {
			return ports.Settings{}, fmt.Errorf("%w: discounts[%d]: %w", ErrInvalidSettings, i, err)
		}
		settings.Discounts = append(settings.Discounts, discount)
	}
	for i, node := range d.DeliveryAreas {
		if strings.TrimSpace(node.Zip) == "" || strings.TrimSpace(node.City) == "" {
			return ports.Settings{}, fmt.Errorf("%w: deliveryAreas[%d]: zip and city are required", ErrInvalidSettings, i)
		}
		settings.DeliveryAreas = append(settings.DeliveryAreas, domain.DeliveryArea{Zip: node.Zip, City: node.City})
	}
	return settings, nil
}

func (n discountNode) toDomain() (domain.Discount, error) {
	pct, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(n.Percentage, ",", ".")))
	if err != nil {
		return domain.Discount{}, fmt.Errorf("percentage %q: %w", n.Percentage, err)
	}
	id := n.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(n.Name)).String()
	}
	discount := domain.Discount{
		ID:         id,
		Name:       n.Name,
		Percentage: pct,
		Enabled:    n.Enabled == nil || *n.Enabled,
	}
	if discount.StartDate, err = parseBound(n.StartDate, false); err != nil {
		return domain.Discount{}, fmt.Errorf("startDate: %w", err)
	}
	if discount.EndDate, err = parseBound(n.EndDate, true); err != nil {
		return domain.Discount{}, fmt.Errorf("endDate: %w", err)
	}
	if err := discount.Validate(); err != nil {
		return domain.Discount{}, err
	}
	return discount, nil
}

func parseAmount(field, raw string) (money.Money, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	amount, err := money.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidSettings, field, err)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidSettings, field)
	}
	return amount, nil
}

// parseBound accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseBound(raw string, end bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if end {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}
