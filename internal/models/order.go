package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment label of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every fulfilment status in display order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusDelivered, OrderStatusCancelled}
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentStatus tracks what is known about payment for an order. No gateway
// is integrated; the value is set by administrators.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// Address is the shipping destination captured on an order.
type Address struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code,omitempty"`
}

type Order struct {
	BaseModel
	OrderNumber     string          `gorm:"uniqueIndex;not null;size:32" json:"order_number"`
	UserID          *uuid.UUID      `gorm:"type:uuid;index" json:"user_id,omitempty"`
	GuestEmail      string          `gorm:"index" json:"guest_email,omitempty"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	ShippingAddress Address         `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Tax             decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	ShippingCost    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_cost"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Status          OrderStatus     `gorm:"type:varchar(16);not null;index" json:"status"`
	PaymentStatus   PaymentStatus   `gorm:"type:varchar(16);not null;index" json:"payment_status"`
	PaymentID       string          `json:"payment_id,omitempty"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// OrderItem is a snapshot of a product at purchase time. It does not follow
// later catalog edits.
type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid" json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Image     string          `json:"image,omitempty"`
	ItemTotal decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"item_total"`
}

// Owner says who an order belongs to: a registered identity or a guest
// email, never both.
type Owner struct {
	userID uuid.UUID
	email  string
}

// OwnedBy returns an owner bound to a registered identity.
func OwnedBy(id uuid.UUID) Owner {
	return Owner{userID: id}
}

// Guest returns an owner identified only by a contact email.
func Guest(email string) Owner {
	return Owner{email: NormalizeEmail(email)}
}

// IsZero reports whether no owner was set.
func (o Owner) IsZero() bool {
	return o.userID == uuid.Nil && o.email == ""
}

// IsGuest reports whether the owner is a guest email.
func (o Owner) IsGuest() bool {
	return o.userID == uuid.Nil && o.email != ""
}

// UserID returns the owning identity id and whether one is set.
func (o Owner) UserID() (uuid.UUID, bool) {
	return o.userID, o.userID != uuid.Nil
}

// Email returns the guest email; empty for registered owners.
func (o Owner) Email() string {
	return o.email
}

// Owner reads the ownership columns back into the tagged form.
func (o *Order) Owner() Owner {
	if o.UserID != nil && *o.UserID != uuid.Nil {
		return OwnedBy(*o.UserID)
	}
	return Guest(o.GuestEmail)
}

// SetOwner writes exactly one of the ownership columns.
func (o *Order) SetOwner(owner Owner) {
	if id, ok := owner.UserID(); ok {
		o.UserID = &id
		o.GuestEmail = ""
		return
	}
	o.UserID = nil
	o.GuestEmail = owner.Email()
}

// TrackingView is the public projection of an order. It deliberately leaves
// out items, address and totals.
type TrackingView struct {
	OrderNumber    string        `json:"order_number"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	TrackingNumber string        `json:"tracking_number,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Tracking builds the public projection.
func (o *Order) Tracking() TrackingView {
	return TrackingView{
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		TrackingNumber: o.TrackingNumber,
		CreatedAt:      o.CreatedAt,
	}
}
