package services

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/utils"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, pg utils.Pagination) ([]models.User, int64, error) {
	args := m.Called(ctx, pg)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.User), args.Get(1).(int64), args.Error(2)
}

// memoryOrders is an in-memory OrderRepository that enforces the
// order_number unique constraint.
type memoryOrders struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]models.Order
	byNumber map[string]uuid.UUID
	inserts  int
	clock    time.Time
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{
		byID:     make(map[uuid.UUID]models.Order),
		byNumber: make(map[string]uuid.UUID),
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memoryOrders) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inserts++
	if _, taken := r.byNumber[order.OrderNumber]; taken {
		return apperrors.ErrDuplicateOrderNumber
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	r.clock = r.clock.Add(time.Minute)
	order.CreatedAt = r.clock
	order.UpdatedAt = r.clock
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}

	r.byID[order.ID] = cloneOrder(*order)
	r.byNumber[order.OrderNumber] = order.ID
	return nil
}

func (r *memoryOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	out := cloneOrder(order)
	return &out, nil
}

func (r *memoryOrders) FindByNumber(_ context.Context, number string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byNumber[number]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	out := cloneOrder(r.byID[id])
	return &out, nil
}

func (r *memoryOrders) LastSequence(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last int64
	for number := range r.byNumber {
		if seq := sequenceOf(number); seq > last {
			last = seq
		}
	}
	return last, nil
}

func sequenceOf(number string) int64 {
	seq, err := strconv.ParseInt(number[strings.LastIndex(number, "-")+1:], 10, 64)
	if err != nil {
		return 0
	}
	return seq
}

func (r *memoryOrders) List(_ context.Context, filter repository.OrderFilter, pg utils.Pagination) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []models.Order
	for _, order := range r.byID {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && order.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.UserID != nil && (order.UserID == nil || *order.UserID != *filter.UserID) {
			continue
		}
		if filter.GuestEmail != "" && order.GuestEmail != filter.GuestEmail {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := pg.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pg.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *memoryOrders) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.byID[id]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	for name, value := range fields {
		switch name {
		case "status":
			order.Status = value.(models.OrderStatus)
		case "payment_status":
			order.PaymentStatus = value.(models.PaymentStatus)
		case "payment_id":
			order.PaymentID = value.(string)
		case "tracking_number":
			order.TrackingNumber = value.(string)
		case "notes":
			order.Notes = value.(string)
		}
	}
	r.byID[id] = order
	return nil
}

func (r *memoryOrders) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.byID[id]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	delete(r.byNumber, order.OrderNumber)
	delete(r.byID, id)
	return nil
}

func (r *memoryOrders) Stats(_ context.Context) (repository.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := repository.OrderStats{Revenue: decimal.Zero, ByStatus: map[models.OrderStatus]int64{}}
	for _, order := range r.byID {
		stats.TotalOrders++
		stats.ByStatus[order.Status]++
		if order.PaymentStatus == models.PaymentStatusPaid {
			stats.PaidOrders++
			stats.Revenue = stats.Revenue.Add(order.Total)
		}
	}
	return stats, nil
}

func cloneOrder(order models.Order) models.Order {
	order.Items = append([]models.OrderItem(nil), order.Items...)
	return order
}

type memoryCatalog map[uuid.UUID]*models.Product

func (c memoryCatalog) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := c[id]
	if !ok {
		return nil, apperrors.ErrProductNotFound
	}
	return product, nil
}

// scriptedSequencer replays fixed values, repeating the last one.
type scriptedSequencer struct {
	mu     sync.Mutex
	values []int64
}

func (s *scriptedSequencer) Next(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[0]
	if len(s.values) > 1 {
		s.values = s.values[1:]
	}
	return v, nil
}

// memoryStore stands in for Redis in sequencer and denylist tests.
type memoryStore struct {
	mu     sync.Mutex
	values map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(int64)
	return true, nil
}

func (s *memoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.values[key]++
	return s.values[key], nil
}

func (s *memoryStore) Set(_ context.Context, key string, _ []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.values[key] = 1
	s.ttls[key] = ttl
	return nil
}

func (s *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.values[key]
	return ok, nil
}
