package order

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_StatusTransitions(t *testing.T) {
	now := time.Now()

	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		{OrderStatusPending, OrderStatusDelivered, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			o := &Order{Status: tt.from}
			err := o.TransitionTo(tt.to, now)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, o.Status)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidStatusTransition)
			assert.Equal(t, tt.from, o.Status)
		})
	}
}

func TestOrder_Cancel(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	o := &Order{Status: OrderStatusProcessing, PaymentStatus: PaymentStatusPaid}
	require.True(t, o.IsCancellable())
	require.NoError(t, o.Cancel("缺货", now))

	assert.Equal(t, OrderStatusCancelled, o.Status)
	assert.Equal(t, PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, "缺货", o.CancelReason)
	require.NotNil(t, o.CancelledAt)
	assert.True(t, o.CancelledAt.Equal(now))

	assert.False(t, o.IsCancellable())
	assert.ErrorIs(t, o.Cancel("again", now), ErrInvalidStatusTransition)
}

func TestOrder_PaymentStatus(t *testing.T) {
	now := time.Now()
	o := &Order{PaymentStatus: PaymentStatusPending}

	require.NoError(t, o.SetPaymentStatus(PaymentStatusFailed, now))
	require.NoError(t, o.SetPaymentStatus(PaymentStatusPaid, now))
	require.NoError(t, o.SetPaymentStatus(PaymentStatusPaid, now)) // 重放
	assert.ErrorIs(t, o.SetPaymentStatus(PaymentStatusPending, now), ErrInvalidPaymentTransition)
	require.NoError(t, o.SetPaymentStatus(PaymentStatusRefunded, now))
	assert.ErrorIs(t, o.SetPaymentStatus(PaymentStatusPaid, now), ErrInvalidPaymentTransition)
}

func TestParsePaymentStatus(t *testing.T) {
	s, ok := ParsePaymentStatus("paid")
	assert.True(t, ok)
	assert.Equal(t, PaymentStatusPaid, s)

	_, ok = ParsePaymentStatus("unknown")
	assert.False(t, ok)
}

func TestShippingInfo_Validate(t *testing.T) {
	assert.NoError(t, ShippingInfo{Recipient: "王五", Address: "解放路3号"}.Validate())
	assert.ErrorIs(t, ShippingInfo{Recipient: " ", Address: "解放路3号"}.Validate(), ErrInvalidShippingInfo)
	assert.ErrorIs(t, ShippingInfo{Recipient: "王五"}.Validate(), ErrInvalidShippingInfo)
}

func TestGenerateOrderNo(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD20260115[0-9A-F]{8}$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		no := GenerateOrderNo(now)
		assert.Regexp(t, pattern, no)
		seen[no] = true
	}
	assert.Greater(t, len(seen), 90)
}
