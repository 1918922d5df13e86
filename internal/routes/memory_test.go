package routes

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[uuid.UUID]*models.User{}}
}

func (r *memUsers) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return apperrors.ErrDuplicateEmail
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrIdentityNotFound
	}
	out := *u
	return &out, nil
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, apperrors.ErrIdentityNotFound
}

func (r *memUsers) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrIdentityNotFound
	}
	for name, value := range fields {
		switch name {
		case "role":
			u.Role = value.(models.Role)
		case "theme":
			u.Theme = value.(models.Theme)
		case "avatar":
			u.Avatar = value.(string)
		case "google_id":
			id := value.(string)
			u.GoogleID = &id
		}
	}
	return nil
}

func (r *memUsers) List(_ context.Context, pg utils.Pagination) ([]models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

type memOrders struct {
	mu     sync.Mutex
	orders []models.Order
}

func (r *memOrders) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == order.OrderNumber {
			return apperrors.ErrDuplicateOrderNumber
		}
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now().Add(time.Duration(len(r.orders)) * time.Second)
	r.orders = append(r.orders, *order)
	return nil
}

func (r *memOrders) find(match func(models.Order) bool) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if match(o) {
			out := o
			return &out, nil
		}
	}
	return nil, apperrors.ErrOrderNotFound
}

func (r *memOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.ID == id })
}

func (r *memOrders) FindByNumber(_ context.Context, number string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.OrderNumber == number })
}

func (r *memOrders) LastSequence(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last int64
	for _, o := range r.orders {
		number := o.OrderNumber
		if seq, err := strconv.ParseInt(number[strings.LastIndex(number, "-")+1:], 10, 64); err == nil && seq > last {
			last = seq
		}
	}
	return last, nil
}

func (r *memOrders) List(_ context.Context, filter repository.OrderFilter, pg utils.Pagination) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.UserID != nil && (o.UserID == nil || *o.UserID != *filter.UserID) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memOrders) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].ID != id {
			continue
		}
		for name, value := range fields {
			switch name {
			case "status":
				r.orders[i].Status = value.(models.OrderStatus)
			case "payment_status":
				r.orders[i].PaymentStatus = value.(models.PaymentStatus)
			case "payment_id":
				r.orders[i].PaymentID = value.(string)
			case "tracking_number":
				r.orders[i].TrackingNumber = value.(string)
			case "notes":
				r.orders[i].Notes = value.(string)
			}
		}
		return nil
	}
	return apperrors.ErrOrderNotFound
}

func (r *memOrders) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].ID == id {
			r.orders = append(r.orders[:i], r.orders[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrOrderNotFound
}

func (r *memOrders) Stats(context.Context) (repository.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := repository.OrderStats{Revenue: decimal.Zero, ByStatus: map[models.OrderStatus]int64{}}
	for _, o := range r.orders {
		stats.TotalOrders++
		stats.ByStatus[o.Status]++
		if o.PaymentStatus == models.PaymentStatusPaid {
			stats.PaidOrders++
			stats.Revenue = stats.Revenue.Add(o.Total)
		}
	}
	return stats, nil
}

type memCatalog map[uuid.UUID]*models.Product

func (c memCatalog) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := c[id]
	if !ok {
		return nil, apperrors.ErrProductNotFound
	}
	return p, nil
}

// stubGoogle accepts "code-<email>" codes and "idtoken-<email>" ID tokens.
type stubGoogle struct{}

func (stubGoogle) AuthURL(state string) string {
	return "https://accounts.google.test/auth?state=" + state
}

func (stubGoogle) ExchangeCode(_ context.Context, code string) (*services.Assertion, error) {
	const prefix = "code-"
	if len(code) <= len(prefix) || code[:len(prefix)] != prefix {
		return nil, apperrors.ErrCredentialExchangeFailed
	}
	return &services.Assertion{Subject: "sub-" + code[len(prefix):], Email: code[len(prefix):], EmailVerified: true}, nil
}

func (stubGoogle) VerifyIDToken(_ context.Context, token string) (*services.Assertion, error) {
	const prefix = "idtoken-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return nil, apperrors.ErrCredentialInvalid
	}
	return &services.Assertion{Subject: "sub-" + token[len(prefix):], Email: token[len(prefix):], EmailVerified: true}, nil
}
