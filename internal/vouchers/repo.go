package vouchers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchers-backend/internal/repo"
	"github.com/angelmondragon/vouchers-backend/pkg/db/models"
	"github.com/angelmondragon/vouchers-backend/pkg/enums"
)

// Repository exposes voucher persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a voucher repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a new voucher row. The insert fails on a duplicate id so a
// retried create never silently overwrites an existing record.
func (r *Repository) Create(ctx context.Context, voucher *models.Voucher) (*models.Voucher, error) {
	if err := r.DB(ctx).Create(voucher).Error; err != nil {
		return nil, err
	}
	return voucher, nil
}

// FindByID returns the voucher with the given id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.DB(ctx).Where(`"voucher-id" = ?`, id).First(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// ListAll returns every voucher, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]models.Voucher, error) {
	var rows []models.Voucher
	if err := r.DB(ctx).Order("created_at DESC").Order(`"voucher-id" DESC`).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkUsedIfUnused flips status to used only when it is still unused. The
// conditional write is the claim's linearization point: of two concurrent
// claims exactly one sees a row update.
func (r *Repository) MarkUsedIfUnused(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.DB(ctx).
		Model(&models.Voucher{}).
		Where(`"voucher-id" = ? AND status = ?`, id, enums.VoucherStatusUnused).
		Updates(map[string]any{
			"status":     enums.VoucherStatusUsed,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
