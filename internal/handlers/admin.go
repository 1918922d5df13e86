package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// AdminHandler exposes administrative operations.
type AdminHandler struct {
	orders   *services.OrderService
	identity *services.IdentityService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(orders *services.OrderService, identity *services.IdentityService) *AdminHandler {
	return &AdminHandler{orders: orders, identity: identity}
}

// GetOrderStats returns order counts and paid revenue.
func (h *AdminHandler) GetOrderStats(c *fiber.Ctx) error {
	stats, err := h.orders.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, stats)
}

// ListAllOrders returns all orders with pagination and filtering.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	filter, err := parseOrderFilter(c)
	if err != nil {
		return err
	}

	page, err := h.orders.List(c.UserContext(), filter, utils.ParsePagination(c))
	if err != nil {
		return err
	}
	return paginated(c, page)
}

func parseOrderFilter(c *fiber.Ctx) (repository.OrderFilter, error) {
	filter := repository.OrderFilter{
		Status:        models.OrderStatus(strings.ToLower(c.Query("status"))),
		PaymentStatus: models.PaymentStatus(strings.ToLower(c.Query("payment_status"))),
		GuestEmail:    c.Query("guest_email"),
	}

	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, apperrors.Validation("user_id", "must be a valid id")
		}
		filter.UserID = &id
	}

	if raw := c.Query("from"); raw != "" {
		from, err := parseTime(raw, false)
		if err != nil {
			return filter, apperrors.Validation("from", "must be a date or RFC3339 timestamp")
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseTime(raw, true)
		if err != nil {
			return filter, apperrors.Validation("to", "must be a date or RFC3339 timestamp")
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, apperrors.Validation("to", "must not be before from")
	}

	return filter, nil
}

// parseTime accepts RFC3339 or a plain date. A plain date used as an upper
// bound covers the whole day.
func parseTime(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// GetOrder returns a single order with its items.
func (h *AdminHandler) GetOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respond(c, order)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing delivered cancelled"`
}

// UpdateOrderStatus sets the fulfilment status.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req statusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orders.SetStatus(c.UserContext(), id, models.OrderStatus(req.Status))
	if err != nil {
		return err
	}
	return respond(c, order)
}

type paymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid failed refunded"`
	PaymentID     string `json:"payment_id" validate:"max=128"`
}

// UpdatePaymentStatus records a payment outcome.
func (h *AdminHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req paymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orders.SetPaymentStatus(c.UserContext(), id, models.PaymentStatus(req.PaymentStatus), req.PaymentID)
	if err != nil {
		return err
	}
	return respond(c, order)
}

type trackingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,max=64"`
}

// UpdateTracking stores the carrier tracking number.
func (h *AdminHandler) UpdateTracking(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req trackingRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orders.SetTracking(c.UserContext(), id, req.TrackingNumber)
	if err != nil {
		return err
	}
	return respond(c, order)
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// UpdateNotes replaces the internal notes on an order.
func (h *AdminHandler) UpdateNotes(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req notesRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orders.SetNotes(c.UserContext(), id, req.Notes)
	if err != nil {
		return err
	}
	return respond(c, order)
}

// DeleteOrder removes an order permanently.
func (h *AdminHandler) DeleteOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.orders.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListAllUsers returns all registered users with pagination.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	users, total, err := h.identity.List(c.UserContext(), pg)
	if err != nil {
		return err
	}
	if users == nil {
		users = []models.User{}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       users,
		"pagination": pg.Meta(total),
	})
}
