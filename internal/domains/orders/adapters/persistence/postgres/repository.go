package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists orders in PostgreSQL using GORM. Caller manages DB lifecycle
// and runs platform/migrations beforehand.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes the order, its lines and extras in one transaction. The returned
// aggregate is built from the written record, so a committed insert never
// reports an error.
func (r *Repository) Insert(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	id := uuid.New()
	if order.ID != "" {
		parsed, err := uuid.Parse(order.ID)
		if err != nil {
			return nil, err
		}
		id = parsed
	}
	record := toRecord(order, id)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	// timestamptz keeps microseconds.
	record.CreatedAt = record.CreatedAt.UTC().Truncate(time.Microsecond)
	record.UpdatedAt = record.UpdatedAt.UTC().Truncate(time.Microsecond)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ports.ErrNotFound
	}
	var record orderRecord
	if err := r.withAggregate(ctx).First(&record, "id = ?", parsed).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	query := r.withAggregate(ctx)
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(filter.Statuses))
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	var records []orderRecord
	if err := query.Order("created_at DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(records))
	for i := range records {
		orders = append(orders, records[i].toDomain())
	}
	return orders, nil
}

// UpdateStatusIfCurrentlyIn is a single conditional UPDATE; the status predicate
// makes concurrent transitions on the same order mutually exclusive.
func (r *Repository) UpdateStatusIfCurrentlyIn(ctx context.Context, id string, expected []domain.Status, next domain.Status, change ports.StatusChange) (bool, error) {
	if err := r.ensureDB(); err != nil {
		return false, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil || len(expected) == 0 {
		return false, nil
	}
	updates := map[string]any{"status": string(next)}
	if change.At.IsZero() {
		updates["updated_at"] = gorm.Expr("NOW()")
	} else {
		updates["updated_at"] = change.At
	}
	if change.EstimatedMinutes != nil {
		updates["estimated_minutes"] = *change.EstimatedMinutes
	}
	if change.Declined {
		updates["declined"] = true
	}
	result := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ? AND status IN ?", parsed, statusStrings(expected)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete removes an order; lines and extras go with it through ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id string) (int64, error) {
	if err := r.ensureDB(); err != nil {
		return 0, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Delete(&orderRecord{}, "id = ?", parsed)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *Repository) withAggregate(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Lines.Extras", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
