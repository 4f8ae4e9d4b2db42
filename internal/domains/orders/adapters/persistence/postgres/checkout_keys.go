package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

var _ ports.CheckoutKeyStore = (*CheckoutKeys)(nil)

type checkoutKeyRecord struct {
	Key         string    `gorm:"primaryKey;column:key"`
	RequestHash string    `gorm:"column:request_hash"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (checkoutKeyRecord) TableName() string { return "checkout_idempotency_keys" }

// CheckoutKeys persists checkout idempotency keys next to the orders they created.
// Keys disappear with their order.
type CheckoutKeys struct {
	db *gorm.DB
}

func NewCheckoutKeys(db *gorm.DB) *CheckoutKeys {
	return &CheckoutKeys{db: db}
}

func (s *CheckoutKeys) Get(ctx context.Context, key string) (*ports.CheckoutKey, error) {
	var record checkoutKeyRecord
	if err := s.db.WithContext(ctx).First(&record, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toCheckoutKey(record), nil
}

func (s *CheckoutKeys) Save(ctx context.Context, record ports.CheckoutKey) (*ports.CheckoutKey, error) {
	orderID, err := uuid.Parse(record.OrderID)
	if err != nil {
		return nil, err
	}
	row := checkoutKeyRecord{Key: record.Key, RequestHash: record.RequestHash, OrderID: orderID, CreatedAt: record.CreatedAt}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 1 {
		return toCheckoutKey(row), nil
	}
	existing, err := s.Get(ctx, record.Key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.New("checkout key vanished during save")
	}
	if existing.RequestHash != record.RequestHash {
		return existing, ports.ErrIdempotencyConflict
	}
	return existing, nil
}

// DeleteByOrder is normally a no-op: the foreign key already cascades order deletes.
func (s *CheckoutKeys) DeleteByOrder(ctx context.Context, orderID string) error {
	parsed, err := uuid.Parse(orderID)
	if err != nil {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&checkoutKeyRecord{}, "order_id = ?", parsed).Error
}

func toCheckoutKey(r checkoutKeyRecord) *ports.CheckoutKey {
	return &ports.CheckoutKey{
		Key:         r.Key,
		RequestHash: r.RequestHash,
		OrderID:     r.OrderID.String(),
		CreatedAt:   r.CreatedAt,
	}
}
