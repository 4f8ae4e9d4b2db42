package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

type fakeOrderRepo struct {
	mu          sync.Mutex
	orders      map[string]*domain.Order
	nextID      int
	failInsert  error
	failUpdate  error
	deleteCount *int64
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*domain.Order{}}
}

func (f *fakeOrderRepo) Insert(_ context.Context, order *domain.Order) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert != nil {
		return nil, f.failInsert
	}
	f.nextID++
	clone := order.Clone()
	clone.ID = fmt.Sprintf("order-%d", f.nextID)
	f.orders[clone.ID] = clone
	return clone.Clone(), nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		return o.Clone(), nil
	}
	return nil, ports.ErrNotFound
}

func (f *fakeOrderRepo) List(_ context.Context, _ ports.ListFilter) ([]*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*domain.Order
	for _, o := range f.orders {
		list = append(list, o.Clone())
	}
	return list, nil
}

func (f *fakeOrderRepo) UpdateStatusIfCurrentlyIn(_ context.Context, id string, expected []domain.Status, next domain.Status, change ports.StatusChange) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return false, f.failUpdate
	}
	o, ok := f.orders[id]
	if !ok {
		return false, nil
	}
	for _, s := range expected {
		if o.Status == s {
			o.Status = next
			o.Declined = o.Declined || change.Declined
			if change.EstimatedMinutes != nil {
				m := *change.EstimatedMinutes
				o.EstimatedMinutes = &m
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOrderRepo) Delete(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteCount != nil {
		return *f.deleteCount, nil
	}
	if _, ok := f.orders[id]; !ok {
		return 0, nil
	}
	delete(f.orders, id)
	return 1, nil
}

func (f *fakeOrderRepo) status(id string) domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id].Status
}

type fakeNotifier struct {
	mu            sync.Mutex
	confirmations int
	cancellations int
	lastLabel     string
	err           error
}

func (f *fakeNotifier) SendOrderConfirmation(_ context.Context, _ *domain.Order, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations++
	f.lastLabel = label
	return f.err
}

func (f *fakeNotifier) SendOrderCancellation(_ context.Context, _ *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancellations++
	return f.err
}

type fakeSettings struct {
	settings ports.Settings
	err      error
}

func (f fakeSettings) Settings(context.Context) (ports.Settings, error) {
	return f.settings, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

var fixedNow = time.Date(2025, 6, 1, 19, 30, 0, 0, time.UTC)

func defaultSettings() ports.Settings {
	return ports.Settings{
		DeliveryThreshold:   money.MustParse("20.00"),
		StandardDeliveryFee: money.MustParse("2.50"),
		DeliveryAreas:       []domain.DeliveryArea{{Zip: "10115", City: "Berlin"}},
	}
}

type harness struct {
	repo      *fakeOrderRepo
	notifier  *fakeNotifier
	publisher *recordingPublisher
	svc       *Service
}

func newHarness(settings ports.Settings) *harness {
	h := &harness{repo: newFakeOrderRepo(), notifier: &fakeNotifier{}, publisher: &recordingPublisher{}}
	h.svc = NewService(h.repo, h.notifier, fakeSettings{settings: settings},
		WithClock(func() time.Time { return fixedNow }),
		WithEventPublisher(h.publisher),
	)
	return h
}

func checkoutInput() ports.CreateOrderInput {
	return ports.CreateOrderInput{
		Customer: domain.Customer{
			Name:    "Grace",
			Phone:   "030 1234567",
			Email:   "grace@example.com",
			Address: &domain.Address{Street: "Invalidenstr. 5", Zip: "10115", City: "Berlin"},
		},
		Lines: []domain.OrderLine{{
			MenuItemID: "margherita",
			Name:       "Pizza Margherita",
			Quantity:   2,
			SizeName:   "32cm",
			SizePrice:  money.MustParse("12.90"),
		}},
		OrderType:     domain.OrderTypeDelivery,
		PaymentMethod: domain.PaymentCash,
	}
}

func (h *harness) placeOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := h.svc.CreateOrder(context.Background(), checkoutInput())
	require.NoError(t, err)
	return order
}

func TestCreateOrder_PricesAndPersistsWithoutEmail(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)

	require.NotEmpty(t, order.ID)
	require.Equal(t, domain.StatusAwaitingConfirmation, order.Status)
	require.Equal(t, "25.80", order.Subtotal.String())
	require.Equal(t, "0.00", order.DeliveryFee.String())
	require.Equal(t, "25.80", order.TotalAmount.String())
	require.Equal(t, fixedNow, order.CreatedAt)
	require.Zero(t, h.notifier.confirmations+h.notifier.cancellations)
	require.Equal(t, []string{"orders.order.created"}, h.publisher.names())
}

func TestCreateOrder_SnapshotsOnlyActiveDiscounts(t *testing.T) {
	settings := defaultSettings()
	expired := fixedNow.Add(-time.Hour)
	settings.Discounts = []domain.Discount{
		{Name: "Happy hour", Percentage: decimal.NewFromInt(10), Enabled: true},
		{Name: "Old", Percentage: decimal.NewFromInt(50), Enabled: true, EndDate: &expired},
		{Name: "Off", Percentage: decimal.NewFromInt(50), Enabled: false},
	}
	h := newHarness(settings)
	order := h.placeOrder(t)

	require.Len(t, order.AppliedDiscounts, 1)
	require.Equal(t, "Happy hour", order.AppliedDiscounts[0].Name)
	require.Equal(t, "2.58", order.DiscountAmount.String())
	require.Equal(t, "23.22", order.TotalAmount.String())
}

func TestCreateOrder_ValidationFailures(t *testing.T) {
	cases := map[string]func(*ports.CreateOrderInput){
		"empty cart":      func(in *ports.CreateOrderInput) { in.Lines = nil },
		"bad email":       func(in *ports.CreateOrderInput) { in.Customer.Email = "nope" },
		"bad phone":       func(in *ports.CreateOrderInput) { in.Customer.Phone = "call me maybe" },
		"no address":      func(in *ports.CreateOrderInput) { in.Customer.Address = nil },
		"unserved area":   func(in *ports.CreateOrderInput) { in.Customer.Address.Zip = "99999" },
		"negative price":  func(in *ports.CreateOrderInput) { in.Lines[0].SizePrice = -1 },
		"paypal disabled": func(in *ports.CreateOrderInput) { in.PaymentMethod = domain.PaymentPayPal },
		"bad order type":  func(in *ports.CreateOrderInput) { in.OrderType = "drone" },
		"huge quantity":   func(in *ports.CreateOrderInput) { in.Lines[0].Quantity = 1<<54 + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(defaultSettings())
			input := checkoutInput()
			mutate(&input)
			_, err := h.svc.CreateOrder(context.Background(), input)
			require.ErrorIs(t, err, ErrValidationFailed)
			require.Empty(t, h.repo.orders)
			require.Empty(t, h.publisher.names())
		})
	}
}

func TestCreateOrder_PickupSkipsDeliveryArea(t *testing.T) {
	h := newHarness(defaultSettings())
	input := checkoutInput()
	input.OrderType = domain.OrderTypePickup
	input.Customer.Address = &domain.Address{Zip: "99999", City: "Elsewhere"}
	order, err := h.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Nil(t, order.Customer.Address)
}

func TestCreateOrder_PayPalWhenEnabled(t *testing.T) {
	settings := defaultSettings()
	settings.PayPalEnabled = true
	h := newHarness(settings)
	input := checkoutInput()
	input.PaymentMethod = domain.PaymentPayPal
	order, err := h.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPayPal, order.PaymentMethod)
}

func TestCreateOrder_PersistenceFailure(t *testing.T) {
	h := newHarness(defaultSettings())
	h.repo.failInsert = errors.New("connection reset")
	_, err := h.svc.CreateOrder(context.Background(), checkoutInput())
	require.ErrorIs(t, err, ErrPersistenceFailed)
	require.NotErrorIs(t, err, ErrValidationFailed)
	require.Empty(t, h.publisher.names())
}

func TestCreateOrder_SettingsFailure(t *testing.T) {
	h := newHarness(defaultSettings())
	h.svc.settings = fakeSettings{err: errors.New("settings table missing")}
	_, err := h.svc.CreateOrder(context.Background(), checkoutInput())
	require.ErrorIs(t, err, ErrPersistenceFailed)
}

func TestConfirmOrder_SecondCallRejectedAndEmailSentOnce(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)

	confirmed, err := h.svc.ConfirmOrder(context.Background(), order.ID, 40)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, confirmed.Status)
	require.Equal(t, 40, *confirmed.EstimatedMinutes)
	require.Equal(t, "40 minutes", h.notifier.lastLabel)

	_, err = h.svc.ConfirmOrder(context.Background(), order.ID, 40)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, 1, h.notifier.confirmations)
}

func TestConfirmOrder_RejectsNonPositiveEstimate(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)
	_, err := h.svc.ConfirmOrder(context.Background(), order.ID, 0)
	require.ErrorIs(t, err, ErrValidationFailed)
	require.Equal(t, domain.StatusAwaitingConfirmation, h.repo.status(order.ID))
}

func TestConfirmOrder_NotFound(t *testing.T) {
	h := newHarness(defaultSettings())
	_, err := h.svc.ConfirmOrder(context.Background(), "missing", 20)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmOrder_ConcurrentCallsConfirmOnce(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.ConfirmOrder(context.Background(), order.ID, 25)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrInvalidTransition)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, h.notifier.confirmations)
}

func TestConfirmOrder_NotificationFailureIsPartialSuccess(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)
	h.notifier.err = errors.New("smtp down")

	confirmed, err := h.svc.ConfirmOrder(context.Background(), order.ID, 30)
	require.Error(t, err)
	require.NotNil(t, confirmed)
	require.True(t, IsPartialSuccess(err))
	require.ErrorIs(t, err, ErrNotificationFailed)
	require.NotErrorIs(t, err, ErrPersistenceFailed)
	require.NotErrorIs(t, err, ErrValidationFailed)

	var nf *NotificationFailedError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, order.ID, nf.OrderID)
	require.Equal(t, ports.NotificationConfirmation, nf.Kind)

	require.Equal(t, domain.StatusPending, h.repo.status(order.ID))
}

func TestConfirmOrder_StatusWriteFailureIsFatal(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)
	h.repo.failUpdate = errors.New("deadlock detected")

	confirmed, err := h.svc.ConfirmOrder(context.Background(), order.ID, 30)
	require.Nil(t, confirmed)
	require.ErrorIs(t, err, ErrPersistenceFailed)
	require.False(t, IsPartialSuccess(err))
	require.Zero(t, h.notifier.confirmations)
}

func TestDeclineOrder(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)

	require.NoError(t, h.svc.DeclineOrder(context.Background(), order.ID))
	require.Equal(t, domain.StatusCancelled, h.repo.status(order.ID))
	require.Equal(t, 1, h.notifier.cancellations)

	require.ErrorIs(t, h.svc.DeclineOrder(context.Background(), order.ID), ErrInvalidTransition)
	require.Equal(t, 1, h.notifier.cancellations)
}

func TestDeclineOrder_OnlyFromAwaitingConfirmation(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)
	_, err := h.svc.ConfirmOrder(context.Background(), order.ID, 30)
	require.NoError(t, err)

	err = h.svc.DeclineOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, domain.StatusPending, h.repo.status(order.ID))
	require.Zero(t, h.notifier.cancellations)
}

func TestDeclineOrder_NotificationFailure(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)
	h.notifier.err = errors.New("quota exceeded")

	err := h.svc.DeclineOrder(context.Background(), order.ID)
	require.True(t, IsPartialSuccess(err))
	require.Equal(t, domain.StatusCancelled, h.repo.status(order.ID))
}

func TestUpdateStatus_AdminOverrideSendsNothing(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)

	updated, err := h.svc.UpdateStatus(context.Background(), order.ID, domain.StatusDelivered)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDelivered, updated.Status)

	_, err = h.svc.UpdateStatus(context.Background(), order.ID, domain.StatusPreparing)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.svc.UpdateStatus(context.Background(), order.ID, domain.StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, domain.StatusDelivered, h.repo.status(order.ID))

	second := h.placeOrder(t)
	updated, err = h.svc.UpdateStatus(context.Background(), second.ID, domain.StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, updated.Status)

	_, err = h.svc.UpdateStatus(context.Background(), second.ID, domain.StatusPreparing)
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.Zero(t, h.notifier.confirmations+h.notifier.cancellations)
	require.Contains(t, h.publisher.names(), "orders.order.status_changed")
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)
	_, err := h.svc.UpdateStatus(context.Background(), order.ID, domain.Status("lost"))
	require.ErrorIs(t, err, ErrValidationFailed)
}

func TestDeleteOrder(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)

	require.NoError(t, h.svc.DeleteOrder(context.Background(), order.ID))
	_, err := h.svc.GetOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, h.svc.DeleteOrder(context.Background(), order.ID), ErrNotFound)
}

func TestDeleteOrder_ZeroRowsIsNotFound(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)
	zero := int64(0)
	h.repo.deleteCount = &zero

	err := h.svc.DeleteOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.NotContains(t, h.publisher.names(), "orders.order.deleted")
}

func TestPublishFailureDoesNotFailCommand(t *testing.T) {
	h := newHarness(defaultSettings())
	h.publisher.err = errors.New("broker unreachable")
	order := h.placeOrder(t)
	_, err := h.svc.ConfirmOrder(context.Background(), order.ID, 15)
	require.NoError(t, err)
}

func TestQuoteCartAndActiveDiscounts(t *testing.T) {
	settings := defaultSettings()
	settings.Discounts = []domain.Discount{{Name: "Ten", Percentage: decimal.NewFromInt(10), Enabled: true}}
	h := newHarness(settings)

	active, err := h.svc.ActiveDiscounts(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)

	quote, err := h.svc.QuoteCart(context.Background(), ports.QuoteInput{
		Lines:     []domain.OrderLine{{Name: "Pizza", Quantity: 2, SizePrice: money.MustParse("9.00")}},
		OrderType: domain.OrderTypeDelivery,
	})
	require.NoError(t, err)
	require.Equal(t, "18.70", quote.Total.String())
	require.Empty(t, h.repo.orders)
}

func TestResendNotification(t *testing.T) {
	h := newHarness(defaultSettings())
	order := h.placeOrder(t)

	err := h.svc.ResendNotification(context.Background(), order.ID, ports.NotificationConfirmation)
	require.ErrorIs(t, err, ErrInvalidTransition)

	h.notifier.err = errors.New("smtp down")
	_, err = h.svc.ConfirmOrder(context.Background(), order.ID, 30)
	require.True(t, IsPartialSuccess(err))

	h.notifier.err = nil
	require.NoError(t, h.svc.ResendNotification(context.Background(), order.ID, ports.NotificationConfirmation))
	require.Equal(t, 2, h.notifier.confirmations)
	require.Equal(t, "30 minutes", h.notifier.lastLabel)

	err = h.svc.ResendNotification(context.Background(), order.ID, ports.NotificationCancellation)
	require.ErrorIs(t, err, ErrInvalidTransition)

	err = h.svc.ResendNotification(context.Background(), order.ID, "sms")
	require.ErrorIs(t, err, ErrValidationFailed)
}

func TestResendNotification_CancellationOnlyForDeclinedOrders(t *testing.T) {
	h := newHarness(defaultSettings())
	declined := h.placeOrder(t)
	cancelled := h.placeOrder(t)

	require.NoError(t, h.svc.DeclineOrder(context.Background(), declined.ID))
	_, err := h.svc.UpdateStatus(context.Background(), cancelled.ID, domain.StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, 1, h.notifier.cancellations)

	require.NoError(t, h.svc.ResendNotification(context.Background(), declined.ID, ports.NotificationCancellation))
	require.Equal(t, 2, h.notifier.cancellations)

	err = h.svc.ResendNotification(context.Background(), cancelled.ID, ports.NotificationCancellation)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, 2, h.notifier.cancellations)
}

func TestListOrders_ValidatesFilter(t *testing.T) {
	h := newHarness(defaultSettings())
	_, err := h.svc.ListOrders(context.Background(), ports.ListFilter{Statuses: []domain.Status{"weird"}})
	require.ErrorIs(t, err, ErrValidationFailed)

	from := fixedNow
	to := fixedNow.Add(-time.Hour)
	_, err = h.svc.ListOrders(context.Background(), ports.ListFilter{From: &from, To: &to})
	require.ErrorIs(t, err, ErrValidationFailed)
}
