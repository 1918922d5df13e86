package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/utils"
)

const notifyTimeout = 15 * time.Second

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Size      string
	Color     string
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	Items           []OrderItemInput
	ShippingAddress models.Address
	Owner           models.Owner
	Notes           string
}

// AddressDefaults fill in regional fields the customer left blank.
type AddressDefaults struct {
	City    string
	State   string
	Country string
}

// OrderServiceConfig tunes order creation.
type OrderServiceConfig struct {
	CreateAttempts int
	Defaults       AddressDefaults
}

// OrderNotifier is told about freshly created orders.
type OrderNotifier interface {
	NotifyNewOrder(ctx context.Context, order *models.Order) error
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Orders     []models.Order
	Total      int64
	Pagination utils.Pagination
}

// OrderService owns the order lifecycle: creation, lookup and the
// administrative field updates.
type OrderService struct {
	orders   repository.OrderRepository
	catalog  repository.CatalogRepository
	seq      Sequencer
	notifier OrderNotifier
	cfg      OrderServiceConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService wires an OrderService. notifier may be nil.
func NewOrderService(
	orders repository.OrderRepository,
	catalog repository.CatalogRepository,
	seq Sequencer,
	notifier OrderNotifier,
	cfg OrderServiceConfig,
	logger *slog.Logger,
) *OrderService {
	if cfg.CreateAttempts <= 0 {
		cfg.CreateAttempts = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		orders:   orders,
		catalog:  catalog,
		seq:      seq,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Create prices the requested items from the live catalog, assigns an order
// number and persists the order with its items.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	subtotal := decimal.Zero
	for _, line := range in.Items {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}

		price := product.EffectivePrice()
		itemTotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(itemTotal)

		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     price,
			Quantity:  line.Quantity,
			Size:      line.Size,
			Color:     line.Color,
			Image:     product.PrimaryImage(),
			ItemTotal: itemTotal,
		})
	}

	totals := ComputeTotals(subtotal)
	order := &models.Order{
		Items:           items,
		ShippingAddress: s.withDefaults(in.ShippingAddress),
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		ShippingCost:    totals.ShippingCost,
		Total:           totals.Total,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		Notes:           strings.TrimSpace(in.Notes),
	}
	order.SetOwner(in.Owner)

	if err := s.insert(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total", order.Total.StringFixed(2),
		"guest", in.Owner.IsGuest(),
	)
	s.notify(order)

	return order, nil
}

func validateCreate(in CreateOrderInput) error {
	fields := map[string]string{}
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	for i, line := range in.Items {
		if line.ProductID == uuid.Nil {
			fields[fmt.Sprintf("items[%d].product_id", i)] = "is required"
		}
		if line.Quantity < 1 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be at least 1"
		}
	}
	if in.Owner.IsZero() {
		fields["guest_email"] = "is required for guest checkout"
	}
	if len(fields) > 0 {
		return apperrors.NewValidation(fields)
	}
	return nil
}

func (s *OrderService) withDefaults(addr models.Address) models.Address {
	addr.FullName = strings.TrimSpace(addr.FullName)
	addr.Phone = strings.TrimSpace(addr.Phone)
	addr.Street = strings.TrimSpace(addr.Street)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	if strings.TrimSpace(addr.City) == "" {
		addr.City = s.cfg.Defaults.City
	}
	if strings.TrimSpace(addr.State) == "" {
		addr.State = s.cfg.Defaults.State
	}
	if strings.TrimSpace(addr.Country) == "" {
		addr.Country = s.cfg.Defaults.Country
	}
	return addr
}

// insert allocates an order number and retries on a number clash, never
// reusing a sequence it already tried.
func (s *OrderService) insert(ctx context.Context, order *models.Order) error {
	var last int64
	for attempt := 1; attempt <= s.cfg.CreateAttempts; attempt++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			return fmt.Errorf("next order sequence: %w", err)
		}
		if seq <= last {
			seq = last + 1
		}
		last = seq

		order.OrderNumber = FormatOrderNumber(s.now(), seq)
		err = s.orders.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrDuplicateOrderNumber) {
			return err
		}

		s.logger.Warn("order number taken, retrying",
			"order_number", order.OrderNumber,
			"attempt", attempt,
		)
	}
	return apperrors.ErrOrderCreationFailed
}

func (s *OrderService) notify(order *models.Order) {
	if s.notifier == nil {
		return
	}
	snapshot := *order
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyNewOrder(ctx, &snapshot); err != nil {
			s.logger.Warn("order notification failed", "order_number", snapshot.OrderNumber, "error", err)
		}
	}()
}

// Get returns an order with its items.
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.orders.FindByID(ctx, id)
}

// GetForOwner returns the order only if it belongs to userID. Orders owned
// by someone else are reported as not found.
func (s *OrderService) GetForOwner(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	owner, ok := order.Owner().UserID()
	if !ok || owner != userID {
		return nil, apperrors.ErrOrderNotFound
	}
	return order, nil
}

// ListForOwner pages through the orders placed by userID.
func (s *OrderService) ListForOwner(ctx context.Context, userID uuid.UUID, pg utils.Pagination) (*OrderPage, error) {
	return s.List(ctx, repository.OrderFilter{UserID: &userID}, pg)
}

// Track returns the public projection of an order by its number.
func (s *OrderService) Track(ctx context.Context, orderNumber string) (*models.TrackingView, error) {
	number := strings.ToUpper(strings.TrimSpace(orderNumber))
	if number == "" {
		return nil, apperrors.Validation("order_number", "is required")
	}
	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	view := order.Tracking()
	return &view, nil
}

// List pages through orders matching filter, newest first.
func (s *OrderService) List(ctx context.Context, filter repository.OrderFilter, pg utils.Pagination) (*OrderPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Validation("status", "unknown order status")
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, apperrors.Validation("payment_status", "unknown payment status")
	}
	filter.GuestEmail = models.NormalizeEmail(filter.GuestEmail)

	orders, total, err := s.orders.List(ctx, filter, pg)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Total: total, Pagination: pg}, nil
}

// SetStatus moves an order to status. Every known status is reachable from
// every other.
func (s *OrderService) SetStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperrors.Validation("status", "unknown order status")
	}
	return s.update(ctx, id, map[string]interface{}{"status": status})
}

// SetPaymentStatus records the payment outcome. A non-empty paymentID is
// stored alongside it.
func (s *OrderService) SetPaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus, paymentID string) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperrors.Validation("payment_status", "unknown payment status")
	}
	fields := map[string]interface{}{"payment_status": status}
	if paymentID = strings.TrimSpace(paymentID); paymentID != "" {
		fields["payment_id"] = paymentID
	}
	return s.update(ctx, id, fields)
}

// SetTracking stores the carrier tracking number. Status is left alone.
func (s *OrderService) SetTracking(ctx context.Context, id uuid.UUID, trackingNumber string) (*models.Order, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, apperrors.Validation("tracking_number", "is required")
	}
	return s.update(ctx, id, map[string]interface{}{"tracking_number": trackingNumber})
}

// SetNotes replaces the order notes.
func (s *OrderService) SetNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Order, error) {
	return s.update(ctx, id, map[string]interface{}{"notes": strings.TrimSpace(notes)})
}

func (s *OrderService) update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.Order, error) {
	if err := s.orders.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order updated", "order_id", id, "fields", fieldNames(fields))
	return order, nil
}

// Delete removes an order and its items.
func (s *OrderService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("order deleted", "order_id", id)
	return nil
}

// Stats aggregates counts and paid revenue across all orders.
func (s *OrderService) Stats(ctx context.Context) (repository.OrderStats, error) {
	return s.orders.Stats(ctx)
}

func fieldNames(fields map[string]interface{}) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return names
}
