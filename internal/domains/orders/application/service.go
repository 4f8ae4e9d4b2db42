package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

// Service orchestrates the order workflow: validation, pricing, persistence
// and customer notification.
type Service struct {
	repo     ports.Repository
	notifier ports.Notifier
	settings ports.SettingsProvider
	events   ports.EventPublisher
	keys     ports.CheckoutKeyStore
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithEventPublisher publishes domain events after each successful command.
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithCheckoutKeys enables Idempotency-Key handling for CreateOrder.
func WithCheckoutKeys(store ports.CheckoutKeyStore) Option {
	return func(s *Service) { s.keys = store }
}

// WithClock overrides the time source used for discount windows and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger receives warnings about event publishing failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(repo ports.Repository, notifier ports.Notifier, settings ports.SettingsProvider, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: notifier,
		settings: settings,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateOrder validates, prices and stores a checkout. With a checkout key store
// configured, a repeated IdempotencyKey returns the order created by the first call.
func (s *Service) CreateOrder(ctx context.Context, input ports.CreateOrderInput) (*domain.Order, error) {
	if len(input.Lines) == 0 {
		return nil, mapError(domain.ErrEmptyOrder)
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	var fingerprint string
	if key != "" && s.keys != nil {
		var err error
		if fingerprint, err = FingerprintCheckout(input); err != nil {
			return nil, mapError(err)
		}
		existing, err := s.keys.Get(ctx, key)
		if err != nil {
			return nil, persistenceError("load checkout key", err)
		}
		if existing != nil {
			return s.replayCheckout(ctx, existing, fingerprint)
		}
	}
	orderType, err := domain.ParseOrderType(string(input.OrderType))
	if err != nil {
		return nil, mapError(err)
	}
	payment, err := domain.ParsePaymentMethod(string(input.PaymentMethod))
	if err != nil {
		return nil, mapError(err)
	}
	if err := domain.ValidateCustomer(input.Customer, orderType); err != nil {
		return nil, mapError(err)
	}

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	if payment == domain.PaymentPayPal && !settings.PayPalEnabled {
		return nil, mapError(ErrPayPalDisabled)
	}
	if orderType == domain.OrderTypeDelivery {
		if _, err := domain.ResolveDeliveryArea(settings.DeliveryAreas, *input.Customer.Address); err != nil {
			return nil, mapError(err)
		}
	}

	now := s.now()
	quote, err := domain.CalculatePrice(domain.PricingInput{
		Lines:               input.Lines,
		Discounts:           domain.ActiveDiscounts(settings.Discounts, now),
		DeliveryThreshold:   settings.DeliveryThreshold,
		StandardDeliveryFee: settings.StandardDeliveryFee,
		OrderType:           orderType,
	})
	if err != nil {
		return nil, mapError(err)
	}
	order, err := domain.NewOrder(domain.NewOrderParams{
		Customer:      input.Customer,
		Lines:         input.Lines,
		OrderType:     orderType,
		PaymentMethod: payment,
		Notes:         input.Notes,
		Quote:         quote,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, mapError(err)
	}

	saved, err := s.repo.Insert(ctx, order)
	if err != nil {
		return nil, persistenceError("insert order", err)
	}
	if fingerprint != "" {
		stored, err := s.keys.Save(ctx, ports.CheckoutKey{Key: key, RequestHash: fingerprint, OrderID: saved.ID, CreatedAt: now})
		if err != nil || (stored != nil && stored.OrderID != saved.ID) {
			// A concurrent submission with the same key won; drop this copy.
			if _, delErr := s.repo.Delete(ctx, saved.ID); delErr != nil {
				s.logger.WarnContext(ctx, "failed to remove duplicate checkout", slog.String("order_id", saved.ID), slog.String("error", delErr.Error()))
			}
			if stored == nil {
				return nil, persistenceError("save checkout key", err)
			}
			return s.replayCheckout(ctx, stored, fingerprint)
		}
	}
	s.publish(ctx, domain.OrderCreated{
		BaseEvent:    domain.BaseEvent{OrderID: saved.ID, Timestamp: now},
		OrderType:    saved.OrderType,
		CustomerName: saved.Customer.Name,
		TotalCents:   saved.TotalAmount.Int64(),
		LineCount:    len(saved.Lines),
	})
	return saved, nil
}

func (s *Service) replayCheckout(ctx context.Context, existing *ports.CheckoutKey, fingerprint string) (*domain.Order, error) {
	if existing.RequestHash != fingerprint {
		return nil, fmt.Errorf("%w: key %q", ErrIdempotencyConflict, existing.Key)
	}
	order, err := s.repo.GetByID(ctx, existing.OrderID)
	if err != nil {
		return nil, persistenceError("load replayed order", err)
	}
	return order, nil
}

// ConfirmOrder accepts an order awaiting confirmation. When the status was
// written but the email failed, the updated order is returned together with a
// *NotificationFailedError.
func (s *Service) ConfirmOrder(ctx context.Context, id string, estimatedMinutes int) (*domain.Order, error) {
	if estimatedMinutes <= 0 {
		return nil, mapError(domain.ErrInvalidEstimate)
	}
	order, result, err := s.transition(ctx, id, domain.Confirm(estimatedMinutes))
	if err != nil {
		return nil, err
	}
	notifyErr := s.runEffects(ctx, order, result)
	s.publish(ctx, domain.OrderConfirmed{
		BaseEvent:        domain.BaseEvent{OrderID: order.ID, Timestamp: order.UpdatedAt},
		EstimatedMinutes: estimatedMinutes,
		NotificationSent: notifyErr == nil,
	})
	if notifyErr != nil {
		return order, notifyErr
	}
	return order, nil
}

// DeclineOrder cancels an order awaiting confirmation and notifies the customer.
// A *NotificationFailedError means the order is cancelled but the email was not sent.
func (s *Service) DeclineOrder(ctx context.Context, id string) error {
	order, result, err := s.transition(ctx, id, domain.Decline())
	if err != nil {
		return err
	}
	notifyErr := s.runEffects(ctx, order, result)
	s.publish(ctx, domain.OrderDeclined{
		BaseEvent:        domain.BaseEvent{OrderID: order.ID, Timestamp: order.UpdatedAt},
		NotificationSent: notifyErr == nil,
	})
	return notifyErr
}

// UpdateStatus is the admin override. It never notifies the customer.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Order, error) {
	if !status.Valid() {
		return nil, mapError(fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status))
	}
	action := domain.AdvanceTo(status)
	if status == domain.StatusCancelled {
		action = domain.Cancel()
	}
	order, result, err := s.transition(ctx, id, action)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.OrderStatusChanged{
		BaseEvent:  domain.BaseEvent{OrderID: order.ID, Timestamp: order.UpdatedAt},
		FromStatus: result.From,
		ToStatus:   result.To,
	})
	return order, nil
}

// DeleteOrder hard-deletes the aggregate. Zero affected rows is NotFound.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return persistenceError("delete order", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.keys != nil {
		if err := s.keys.DeleteByOrder(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "failed to drop checkout keys of deleted order", slog.String("order_id", id), slog.String("error", err.Error()))
		}
	}
	s.publish(ctx, domain.OrderDeleted{BaseEvent: domain.BaseEvent{OrderID: id, Timestamp: s.now()}})
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, persistenceError("load order", err)
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, filter ports.ListFilter) ([]*domain.Order, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, mapError(fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status))
		}
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: date range end precedes start", ErrValidationFailed)
	}
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, persistenceError("list orders", err)
	}
	return orders, nil
}

// ActiveDiscounts returns the promotions active right now.
func (s *Service) ActiveDiscounts(ctx context.Context) ([]domain.Discount, error) {
	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	return domain.ActiveDiscounts(settings.Discounts, s.now()), nil
}

// QuoteCart prices a cart with the current settings without persisting anything.
func (s *Service) QuoteCart(ctx context.Context, input ports.QuoteInput) (domain.Quote, error) {
	orderType, err := domain.ParseOrderType(string(input.OrderType))
	if err != nil {
		return domain.Quote{}, mapError(err)
	}
	settings, err := s.loadSettings(ctx)
	if err != nil {
		return domain.Quote{}, err
	}
	quote, err := domain.CalculatePrice(domain.PricingInput{
		Lines:               input.Lines,
		Discounts:           domain.ActiveDiscounts(settings.Discounts, s.now()),
		DeliveryThreshold:   settings.DeliveryThreshold,
		StandardDeliveryFee: settings.StandardDeliveryFee,
		OrderType:           orderType,
	})
	if err != nil {
		return domain.Quote{}, mapError(err)
	}
	return quote, nil
}

// ResendNotification retries only the customer message a NotificationFailedError named.
func (s *Service) ResendNotification(ctx context.Context, id string, kind ports.NotificationKind) error {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return persistenceError("load order", err)
	}
	var effect domain.Effect
	switch kind {
	case ports.NotificationConfirmation:
		if order.Status == domain.StatusAwaitingConfirmation || order.Status == domain.StatusCancelled || order.EstimatedMinutes == nil {
			return fmt.Errorf("%w: order %s has no confirmation to resend (status %s)", ErrInvalidTransition, id, order.Status)
		}
		effect = domain.EffectSendConfirmation
	case ports.NotificationCancellation:
		if order.Status != domain.StatusCancelled || !order.Declined {
			return fmt.Errorf("%w: order %s was not declined (status %s)", ErrInvalidTransition, id, order.Status)
		}
		effect = domain.EffectSendCancellation
	default:
		return fmt.Errorf("%w: unknown notification kind %q", ErrValidationFailed, kind)
	}
	return s.runEffects(ctx, order, domain.TransitionResult{From: order.Status, To: order.Status, Effects: []domain.Effect{effect}})
}

// transition loads the order, runs the state machine and persists the result
// with a conditional update so concurrent writers cannot both win.
func (s *Service) transition(ctx context.Context, id string, action domain.Action) (*domain.Order, domain.TransitionResult, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.TransitionResult{}, persistenceError("load order", err)
	}
	result, err := domain.Transition(order.Status, action)
	if err != nil {
		return nil, domain.TransitionResult{}, mapError(err)
	}
	now := s.now()
	applied, err := s.repo.UpdateStatusIfCurrentlyIn(ctx, id, action.AllowedFrom(), result.To, ports.StatusChange{
		EstimatedMinutes: result.EstimatedMinutes,
		Declined:         result.Declined,
		At:               now,
	})
	if err != nil {
		return nil, domain.TransitionResult{}, persistenceError("update order status", err)
	}
	if !applied {
		return nil, domain.TransitionResult{}, fmt.Errorf("%w: order %s was changed concurrently, reload it", ErrInvalidTransition, id)
	}
	order.Apply(result, now)
	return order, result, nil
}

func (s *Service) runEffects(ctx context.Context, order *domain.Order, result domain.TransitionResult) error {
	for _, effect := range result.Effects {
		switch effect {
		case domain.EffectSendConfirmation:
			label := ""
			if order.EstimatedMinutes != nil {
				label = domain.EstimatedTimeLabel(*order.EstimatedMinutes)
			}
			if err := s.notifier.SendOrderConfirmation(ctx, order.Clone(), label); err != nil {
				return &NotificationFailedError{OrderID: order.ID, Kind: ports.NotificationConfirmation, Err: err}
			}
		case domain.EffectSendCancellation:
			if err := s.notifier.SendOrderCancellation(ctx, order.Clone()); err != nil {
				return &NotificationFailedError{OrderID: order.ID, Kind: ports.NotificationCancellation, Err: err}
			}
		}
	}
	return nil
}

func (s *Service) loadSettings(ctx context.Context) (ports.Settings, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return ports.Settings{}, fmt.Errorf("%w: load settings: %w", ErrPersistenceFailed, err)
	}
	return settings, nil
}

func (s *Service) publish(ctx context.Context, events ...domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		names := make([]string, 0, len(events))
		for _, e := range events {
			names = append(names, e.EventName())
		}
		s.logger.WarnContext(ctx, "failed to publish order events", slog.Any("events", names), slog.String("error", err.Error()))
	}
}

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, mapError(err))
}

var _ ports.Service = (*Service)(nil)
