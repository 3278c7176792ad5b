package enums

import "fmt"

// VoucherStatus is the binary lifecycle state of a voucher.
type VoucherStatus string

const (
	VoucherStatusUnused VoucherStatus = "unused"
	VoucherStatusUsed   VoucherStatus = "used"
)

var validVoucherStatuses = []VoucherStatus{
	VoucherStatusUnused,
	VoucherStatusUsed,
}

// String implements fmt.Stringer.
func (v VoucherStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known voucher status.
func (v VoucherStatus) IsValid() bool {
	for _, candidate := range validVoucherStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherStatus converts raw input into VoucherStatus.
func ParseVoucherStatus(value string) (VoucherStatus, error) {
	for _, candidate := range validVoucherStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher status %q", value)
}
