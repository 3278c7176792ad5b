package models

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchers-backend/pkg/enums"
)

// Transition failures surfaced by MarkUsed. The service layer maps these to
// distinct conflict responses.
var (
	ErrVoucherAlreadyUsed = errors.New("voucher has already been claimed")
	ErrVoucherExpired     = errors.New("voucher has expired")
)

// Voucher is a single redeemable discount record. Column names keep the
// hyphenated shape of the legacy key-value table so existing records and the
// scannable artifacts that reference them stay valid.
type Voucher struct {
	VoucherID  uuid.UUID           `gorm:"column:voucher-id;type:uuid;primaryKey"`
	FirstName  string              `gorm:"column:first-name;not null"`
	LastName   string              `gorm:"column:last-name;not null"`
	Percentage string              `gorm:"column:percentage;not null"`
	ExpiryDate *time.Time          `gorm:"column:expiry-date"`
	Status     enums.VoucherStatus `gorm:"column:status;not null;default:'unused'"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the legacy table name.
func (Voucher) TableName() string {
	return "vouchers"
}

// Expired reports whether the voucher's expiry date, when present, has passed.
func (v *Voucher) Expired(now time.Time) bool {
	return v.ExpiryDate != nil && now.After(*v.ExpiryDate)
}

// MarkUsed applies the only permitted transition, unused to used. It is pure
// state logic: no I/O, and the caller persists the result. Expiry is checked
// before the double-claim so an expired voucher reports expiry regardless of
// its current status.
func (v *Voucher) MarkUsed(now time.Time) error {
	if v.Expired(now) {
		return ErrVoucherExpired
	}
	if v.Status == enums.VoucherStatusUsed {
		return ErrVoucherAlreadyUsed
	}
	v.Status = enums.VoucherStatusUsed
	return nil
}
