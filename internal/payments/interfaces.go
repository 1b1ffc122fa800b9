package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/lojinha-backend/pkg/db/models"
)

// Repository defines persistence operations for the payments table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	FindByPayer(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error)
	Save(ctx context.Context, payment *models.Payment) error
}
