package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vouchers-backend/pkg/enums"
)

func TestMarkUsedTransitionsUnusedToUsed(t *testing.T) {
	v := &Voucher{Status: enums.VoucherStatusUnused}
	require.NoError(t, v.MarkUsed(time.Now()))
	assert.Equal(t, enums.VoucherStatusUsed, v.Status)
}

func TestMarkUsedRejectsDoubleClaim(t *testing.T) {
	v := &Voucher{Status: enums.VoucherStatusUsed}
	assert.ErrorIs(t, v.MarkUsed(time.Now()), ErrVoucherAlreadyUsed)
}

func TestMarkUsedExpiryWinsOverStatus(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	v := &Voucher{Status: enums.VoucherStatusUsed, ExpiryDate: &past}
	assert.ErrorIs(t, v.MarkUsed(time.Now()), ErrVoucherExpired)
}

func TestExpiredWithoutDateNeverExpires(t *testing.T) {
	v := &Voucher{Status: enums.VoucherStatusUnused}
	assert.False(t, v.Expired(time.Now().Add(100*365*24*time.Hour)))
}

func TestExpiredAtBoundary(t *testing.T) {
	deadline := time.Now()
	v := &Voucher{ExpiryDate: &deadline}
	assert.False(t, v.Expired(deadline), "the expiry instant itself is still valid")
	assert.True(t, v.Expired(deadline.Add(time.Nanosecond)))
}
