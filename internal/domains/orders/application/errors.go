package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

var (
	// ErrValidationFailed signals a violated precondition; nothing was written.
	ErrValidationFailed = errors.New("order validation failed")
	// ErrInvalidTransition signals an illegal status change or a lost race.
	ErrInvalidTransition = errors.New("order status transition not allowed")
	// ErrNotFound signals the referenced order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrPersistenceFailed signals a failed write or read against the order store.
	ErrPersistenceFailed = errors.New("order persistence failed")
	// ErrNotificationFailed matches every NotificationFailedError.
	ErrNotificationFailed = errors.New("order notification failed")
	// ErrIdempotencyConflict signals a checkout key reused for a different cart.
	ErrIdempotencyConflict = errors.New("checkout key already used for a different order")
	// ErrPayPalDisabled is returned when checkout selects PayPal while it is switched off.
	ErrPayPalDisabled = errors.New("paypal payments are disabled")
)

// NotificationFailedError reports that the order change was persisted but the
// customer message was not delivered. Order and Kind are enough to retry only the message.
type NotificationFailedError struct {
	OrderID string
	Kind    ports.NotificationKind
	Err     error
}

func (e *NotificationFailedError) Error() string {
	return fmt.Sprintf("order %s saved but %s notification failed: %v", e.OrderID, e.Kind, e.Err)
}

func (e *NotificationFailedError) Unwrap() []error {
	return []error{ErrNotificationFailed, e.Err}
}

// IsPartialSuccess reports whether err means "state changed, message not sent".
func IsPartialSuccess(err error) bool {
	var nf *NotificationFailedError
	return errors.As(err, &nf)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPersistenceFailed) ||
		errors.Is(err, ErrNotificationFailed) ||
		errors.Is(err, ErrIdempotencyConflict) {
		return err
	}
	if errors.Is(err, ports.ErrIdempotencyConflict) {
		return fmt.Errorf("%w: %w", ErrIdempotencyConflict, err)
	}
	if errors.Is(err, domain.ErrEmptyOrder) ||
		errors.Is(err, domain.ErrInvalidEmail) ||
		errors.Is(err, domain.ErrInvalidPhone) ||
		errors.Is(err, domain.ErrMissingName) ||
		errors.Is(err, domain.ErrMissingAddress) ||
		errors.Is(err, domain.ErrDeliveryAreaNotServed) ||
		errors.Is(err, domain.ErrAmbiguousDeliveryArea) ||
		errors.Is(err, domain.ErrInvalidPricingInput) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, domain.ErrInvalidOrderType) ||
		errors.Is(err, domain.ErrInvalidPaymentMethod) ||
		errors.Is(err, domain.ErrInvalidEstimate) ||
		errors.Is(err, domain.ErrInvalidDiscount) ||
		errors.Is(err, ErrPayPalDisabled) {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	if errors.Is(err, domain.ErrInvalidTransition) {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}
	if errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
}
