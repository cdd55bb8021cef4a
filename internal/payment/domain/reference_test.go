package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReferenceLicense(t *testing.T) {
	ref, err := ParseReference("gym:gym-1|plan:basic|ref:ABC|disc:8")
	require.NoError(t, err)
	assert.Equal(t, "gym-1", ref.TenantID)
	assert.Equal(t, "basic", ref.PlanID)
	assert.Equal(t, "ABC", ref.ReferralCode)
	require.NotNil(t, ref.DiscountPercent)
	assert.Equal(t, 8, *ref.DiscountPercent)
	assert.Equal(t, KindLicense, ref.Kind())
}

func TestParseReferenceToleratesMissingOptionalFields(t *testing.T) {
	ref, err := ParseReference("gym:gym-1|plan:basic")
	require.NoError(t, err)
	assert.Empty(t, ref.ReferralCode)
	assert.Nil(t, ref.DiscountPercent)

	ref, err = ParseReference("gym:gym-1|plan:basic|ref:|disc:abc")
	require.NoError(t, err)
	assert.Nil(t, ref.DiscountPercent)
}

func TestParseReferenceOrder(t *testing.T) {
	ref, err := ParseReference("gym:gym-1|order:o-77")
	require.NoError(t, err)
	assert.Equal(t, KindOrder, ref.Kind())
	assert.Equal(t, "o-77", ref.OrderID)
}

func TestParseReferenceFailsClosed(t *testing.T) {
	cases := []string{
		"",
		"plan:basic",
		"gym:|plan:basic",
		"gym:gym-1",
		"gym:gym 1|plan:basic",
		"garbage",
		"gym:gym-1|plan:a/b",
	}
	for _, raw := range cases {
		_, err := ParseReference(raw)
		assert.True(t, errors.Is(err, ErrBadReference), "raw %q", raw)
	}
}

func TestReferenceEncodeRoundTrip(t *testing.T) {
	pct := 12
	in := Reference{TenantID: "gym-1", PlanID: "pro", ReferralCode: "XYZ", DiscountPercent: &pct}
	assert.Equal(t, "gym:gym-1|plan:pro|ref:XYZ|disc:12", in.Encode())

	out, err := ParseReference(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)

	order := Reference{TenantID: "gym-1", OrderID: "o1"}
	assert.Equal(t, "gym:gym-1|order:o1", order.Encode())
}

func TestMerchantOrderPaymentForNotification(t *testing.T) {
	mo := MerchantOrder{Payments: []MerchantOrderPayment{{ID: "1", Status: "rejected"}, {ID: "2", Status: "approved"}}}
	id, ok := mo.PaymentForNotification()
	require.True(t, ok)
	assert.Equal(t, "2", id)

	mo = MerchantOrder{Payments: []MerchantOrderPayment{{ID: "9", Status: "pending"}}}
	id, ok = mo.PaymentForNotification()
	require.True(t, ok)
	assert.Equal(t, "9", id)

	_, ok = MerchantOrder{}.PaymentForNotification()
	assert.False(t, ok)
}
