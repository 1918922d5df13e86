package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// OrderHandler manages customer-facing order endpoints.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type orderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1"`
	Size      string `json:"size" validate:"max=32"`
	Color     string `json:"color" validate:"max=32"`
}

type addressRequest struct {
	FullName   string `json:"full_name" validate:"required,max=128"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Street     string `json:"street" validate:"required,max=255"`
	City       string `json:"city" validate:"max=128"`
	State      string `json:"state" validate:"max=128"`
	Country    string `json:"country" validate:"max=128"`
	PostalCode string `json:"postal_code" validate:"max=16"`
}

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress addressRequest     `json:"shipping_address"`
	GuestEmail      string             `json:"guest_email" validate:"omitempty,email"`
	Notes           string             `json:"notes" validate:"max=1000"`
}

// CreateOrder places an order for the signed-in customer, or for a guest
// identified by guest_email.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var owner models.Owner
	if userID, ok := middleware.GetCurrentUserID(c); ok {
		owner = models.OwnedBy(userID)
	} else if req.GuestEmail != "" {
		owner = models.Guest(req.GuestEmail)
	} else {
		return apperrors.Validation("guest_email", "is required for guest checkout")
	}

	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{
			ProductID: uuid.MustParse(item.ProductID),
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		})
	}

	order, err := h.orders.Create(c.UserContext(), services.CreateOrderInput{
		Items: items,
		ShippingAddress: models.Address{
			FullName:   req.ShippingAddress.FullName,
			Phone:      req.ShippingAddress.Phone,
			Street:     req.ShippingAddress.Street,
			City:       req.ShippingAddress.City,
			State:      req.ShippingAddress.State,
			Country:    req.ShippingAddress.Country,
			PostalCode: req.ShippingAddress.PostalCode,
		},
		Owner: owner,
		Notes: req.Notes,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

// TrackOrder returns the public status of an order by its number.
func (h *OrderHandler) TrackOrder(c *fiber.Ctx) error {
	view, err := h.orders.Track(c.UserContext(), c.Params("orderNumber"))
	if err != nil {
		return err
	}
	return respond(c, view)
}

// ListMyOrders returns the caller's orders, newest first.
func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}

	page, err := h.orders.ListForOwner(c.UserContext(), userID, utils.ParsePagination(c))
	if err != nil {
		return err
	}
	return paginated(c, page)
}

// GetMyOrder returns one of the caller's orders.
func (h *OrderHandler) GetMyOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.GetForOwner(c.UserContext(), id, userID)
	if err != nil {
		return err
	}
	return respond(c, order)
}

func paginated(c *fiber.Ctx, page *services.OrderPage) error {
	orders := page.Orders
	if orders == nil {
		orders = []models.Order{}
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": page.Pagination.Meta(page.Total),
	})
}
