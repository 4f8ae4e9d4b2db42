package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

var _ ports.SettingsProvider = (*Provider)(nil)

type settingsRecord struct {
	ID                       int16     `gorm:"primaryKey;column:id"`
	DeliveryThresholdCents   int64     `gorm:"column:delivery_threshold_cents"`
	StandardDeliveryFeeCents int64     `gorm:"column:standard_delivery_fee_cents"`
	PayPalEnabled            bool      `gorm:"column:paypal_enabled"`
	UpdatedAt                time.Time `gorm:"column:updated_at"`
}

func (settingsRecord) TableName() string { return "restaurant_settings" }

type discountRecord struct {
	ID         uuid.UUID       `gorm:"primaryKey;column:id;type:uuid"`
	Name       string          `gorm:"column:name"`
	Percentage decimal.Decimal `gorm:"column:percentage;type:numeric(5,2)"`
	StartDate  *time.Time      `gorm:"column:start_date"`
	EndDate    *time.Time      `gorm:"column:end_date"`
	Enabled    bool            `gorm:"column:enabled"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
}

func (discountRecord) TableName() string { return "discounts" }

type deliveryAreaRecord struct {
	ID   int64  `gorm:"primaryKey;column:id"`
	Zip  string `gorm:"column:zip"`
	City string `gorm:"column:city"`
}

func (deliveryAreaRecord) TableName() string { return "delivery_areas" }

// Provider reads the restaurant settings from the tables created by platform/migrations.
type Provider struct {
	db *gorm.DB
}

func NewProvider(db *gorm.DB) *Provider {
	return &Provider{db: db}
}

func (p *Provider) Settings(ctx context.Context) (ports.Settings, error) {
	if p.db == nil {
		return ports.Settings{}, errors.New("postgres settings provider requires a db")
	}
	db := p.db.WithContext(ctx)

	var row settingsRecord
	if err := db.First(&row, "id = ?", 1).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.Settings{}, err
	}
	var discounts []discountRecord
	if err := db.Order("created_at ASC, id ASC").Find(&discounts).Error; err != nil {
		return ports.Settings{}, err
	}
	var areas []deliveryAreaRecord
	if err := db.Order("zip ASC, city ASC").Find(&areas).Error; err != nil {
		return ports.Settings{}, err
	}

	settings := ports.Settings{
		DeliveryThreshold:   money.Cents(row.DeliveryThresholdCents),
		StandardDeliveryFee: money.Cents(row.StandardDeliveryFeeCents),
		PayPalEnabled:       row.PayPalEnabled,
	}
	for _, d := range discounts {
		settings.Discounts = append(settings.Discounts, domain.Discount{
			ID:         d.ID.String(),
			Name:       d.Name,
			Percentage: d.Percentage,
			StartDate:  d.StartDate,
			EndDate:    d.EndDate,
			Enabled:    d.Enabled,
		})
	}
	for _, a := range areas {
		settings.DeliveryAreas = append(settings.DeliveryAreas, domain.DeliveryArea{Zip: a.Zip, City: a.City})
	}
	return settings, nil
}

// Seed replaces the stored settings with the given snapshot in one transaction.
// Discount ids that are not uuids are mapped to stable name-based uuids.
func (p *Provider) Seed(ctx context.Context, settings ports.Settings) error {
	for _, d := range settings.Discounts {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := settingsRecord{
			ID:                       1,
			DeliveryThresholdCents:   settings.DeliveryThreshold.Int64(),
			StandardDeliveryFeeCents: settings.StandardDeliveryFee.Int64(),
			PayPalEnabled:            settings.PayPalEnabled,
			UpdatedAt:                now,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&discountRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&deliveryAreaRecord{}).Error; err != nil {
			return err
		}
		for i, d := range settings.Discounts {
			record := discountRecord{
				ID:         discountID(d.ID),
				Name:       d.Name,
				Percentage: d.Percentage,
				StartDate:  d.StartDate,
				EndDate:    d.EndDate,
				Enabled:    d.Enabled,
				CreatedAt:  now.Add(time.Duration(i) * time.Microsecond),
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		for _, a := range settings.DeliveryAreas {
			if err := tx.Create(&deliveryAreaRecord{Zip: a.Zip, City: a.City}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func discountID(id string) uuid.UUID {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
}
