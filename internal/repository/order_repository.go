package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

// OrderFilter narrows an order listing. Set fields are AND-combined.
type OrderFilter struct {
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	UserID        *uuid.UUID
	GuestEmail    string
	From          *time.Time
	To            *time.Time
}

// OrderStats aggregates the whole order table.
type OrderStats struct {
	TotalOrders int64                        `json:"total_orders"`
	PaidOrders  int64                        `json:"paid_orders"`
	Revenue     decimal.Decimal              `json:"revenue"`
	ByStatus    map[models.OrderStatus]int64 `json:"by_status"`
}

// OrderRepository defines order persistence operations.
type OrderRepository interface {
	// Create inserts the order and its items. A clash on order_number is
	// reported as ErrDuplicateOrderNumber.
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	// LastSequence returns the highest NNNNNN among existing order numbers,
	// or 0 when there are none.
	LastSequence(ctx context.Context) (int64, error)
	List(ctx context.Context, filter OrderFilter, pg utils.Pagination) ([]models.Order, int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (OrderStats, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository builds a GORM-backed repository.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateOrderNumber.Wrap(err)
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	return &order, nil
}

func (r *orderRepository) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("order_number = ?", number).First(&order).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order %s: %w", number, err)
	}
	return &order, nil
}

func (r *orderRepository) LastSequence(ctx context.Context) (int64, error) {
	var last int64
	if err := lastSequence(r.db.WithContext(ctx)).Row().Scan(&last); err != nil {
		return 0, fmt.Errorf("last order sequence: %w", err)
	}
	return last, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter, pg utils.Pagination) ([]models.Order, int64, error) {
	query := applyOrderFilter(r.db.WithContext(ctx).Model(&models.Order{}), filter).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func applyOrderFilter(query *gorm.DB, filter OrderFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.GuestEmail != "" {
		query = query.Where("guest_email = ?", models.NormalizeEmail(filter.GuestEmail))
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}

func (r *orderRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("delete order items %s: %w", id, err)
		}
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete order %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrOrderNotFound
		}
		return nil
	})
}

func (r *orderRepository) Stats(ctx context.Context) (OrderStats, error) {
	stats := OrderStats{ByStatus: make(map[models.OrderStatus]int64)}
	db := r.db.WithContext(ctx)

	type statusCount struct {
		Status models.OrderStatus
		Count  int64
	}
	var counts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return stats, fmt.Errorf("count orders by status: %w", err)
	}
	for _, sc := range counts {
		stats.ByStatus[sc.Status] = sc.Count
		stats.TotalOrders += sc.Count
	}

	row := db.Model(&models.Order{}).
		Scopes(paidOrders).
		Select("count(*), COALESCE(SUM(total), 0)").
		Row()
	if err := row.Scan(&stats.PaidOrders, &stats.Revenue); err != nil {
		return stats, fmt.Errorf("sum paid revenue: %w", err)
	}

	return stats, nil
}

// paidOrders limits a query to orders whose payment went through. Revenue
// only ever counts these.
func paidOrders(db *gorm.DB) *gorm.DB {
	return db.Where("payment_status = ?", models.PaymentStatusPaid)
}

// lastSequence selects the largest numeric suffix of ORD-YYYYMM-NNNNNN.
func lastSequence(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Order{}).
		Select("COALESCE(MAX(CAST(split_part(order_number, '-', 3) AS BIGINT)), 0)")
}
