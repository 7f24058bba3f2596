package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFees_ReferenceAmounts(t *testing.T) {
	amount := dec("100.00")

	platform := PlatformFee(amount)
	processing := ProcessingFee(amount)
	net := NetAmount(amount, platform, processing)

	assert.True(t, platform.Equal(dec("10.00")), "platform fee: %s", platform)
	assert.True(t, processing.Equal(dec("3.20")), "processing fee: %s", processing)
	assert.True(t, net.Equal(dec("86.80")), "net: %s", net)
}

func TestFees_NetIdentity(t *testing.T) {
	// net must always equal amount - platform - processing at 2 decimals
	for _, raw := range []string{"0", "0.01", "9.99", "29.99", "279.99", "1234.56"} {
		amount := dec(raw)
		platform := PlatformFee(amount)
		processing := ProcessingFee(amount)
		net := NetAmount(amount, platform, processing)

		want := amount.Sub(platform).Sub(processing).Round(2)
		assert.True(t, net.Equal(want), "amount %s: net %s want %s", raw, net, want)
	}
}

func TestFees_RoundingHalfUp(t *testing.T) {
	// 10.05 * 0.10 = 1.005, rounds up to 1.01
	assert.True(t, PlatformFee(dec("10.05")).Equal(dec("1.01")))
	// 5.00 * 0.029 + 0.30 = 0.445, rounds up to 0.45
	assert.True(t, ProcessingFee(dec("5.00")).Equal(dec("0.45")))
}

func TestTax(t *testing.T) {
	tests := []struct {
		country string
		want    string
	}{
		{"US", "8.00"},
		{"FR", "20.00"},
		{"DE", "19.00"},
		{"CA", "13.00"},
		{"ZZ", "0.00"}, // unknown country, no tax
	}
	for _, tt := range tests {
		got := Tax(dec("100.00"), tt.country, DefaultTaxRates)
		assert.True(t, got.Equal(dec(tt.want)), "country %s: got %s", tt.country, got)
	}
}

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name         string
		amount       string
		discountType string
		value        string
		want         string
	}{
		{"percentage 20 off 100", "100.00", DiscountPercentage, "20", "80.00"},
		{"percentage 100 off", "49.99", DiscountPercentage, "100", "0.00"},
		{"fixed 10 off 98", "98.00", DiscountFixedAmount, "10.00", "88.00"},
		{"fixed exceeding amount clamps to zero", "5.00", DiscountFixedAmount, "20.00", "0.00"},
		{"unknown type is a no-op", "50.00", "EARLY_BIRD", "20", "50.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyDiscount(dec(tt.amount), tt.discountType, dec(tt.value))
			require.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}
