package vouchers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/vouchers-backend/pkg/db/models"
)

// Timestamp accepts ISO-8601 timestamps with or without a zone offset.
// Zone-less values are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q, expected ISO-8601", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// CreateVoucherRequest is the issuance payload.
type CreateVoucherRequest struct {
	FirstName  string     `json:"first_name" validate:"required,max=100"`
	LastName   string     `json:"last_name" validate:"required,max=100"`
	Percentage string     `json:"percentage" validate:"required,max=3"`
	ExpiryDate *Timestamp `json:"expiry_date"`
}

// ToInput maps the request to the service input.
func (r CreateVoucherRequest) ToInput() CreateVoucherInput {
	input := CreateVoucherInput{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Percentage: r.Percentage,
	}
	if r.ExpiryDate != nil {
		expiry := r.ExpiryDate.Time
		input.ExpiryDate = &expiry
	}
	return input
}

// ClaimVoucherRequest identifies the voucher being redeemed.
type ClaimVoucherRequest struct {
	VoucherID string `json:"voucher_id" validate:"required,uuid"`
}

// VoucherItem is the wire shape of a voucher record. The API speaks
// underscored keys; the hyphenated spelling exists only in the stored
// columns and the QR payload that mirrors them.
type VoucherItem struct {
	VoucherID  string     `json:"voucher_id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Percentage string     `json:"percentage"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ClaimResult reports the outcome of a successful claim.
type ClaimResult struct {
	VoucherID  string `json:"voucher_id"`
	Status     string `json:"status"`
	Percentage string `json:"percentage"`
}

func toVoucherItem(voucher *models.Voucher) VoucherItem {
	return VoucherItem{
		VoucherID:  voucher.VoucherID.String(),
		FirstName:  voucher.FirstName,
		LastName:   voucher.LastName,
		Percentage: voucher.Percentage,
		ExpiryDate: voucher.ExpiryDate,
		Status:     voucher.Status.String(),
		CreatedAt:  voucher.CreatedAt,
		UpdatedAt:  voucher.UpdatedAt,
	}
}

// ToVoucherItems maps rows to their wire shape, preserving order.
func ToVoucherItems(rows []models.Voucher) []VoucherItem {
	items := make([]VoucherItem, len(rows))
	for i := range rows {
		items[i] = toVoucherItem(&rows[i])
	}
	return items
}

// ToVoucherItem maps a single row to its wire shape.
func ToVoucherItem(voucher *models.Voucher) VoucherItem {
	return toVoucherItem(voucher)
}
