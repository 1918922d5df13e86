package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/models"
)

// CatalogRepository is the read-only view of the product catalog used to
// price orders.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository builds a GORM-backed catalog reader.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("product %s: %w", id, apperrors.ErrProductNotFound)
		}
		return nil, fmt.Errorf("load product %s: %w", id, err)
	}
	return &product, nil
}
