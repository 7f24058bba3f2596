// Package money holds the pure fee and discount arithmetic used by the
// payment ledger and invoice manager. All amounts are shopspring decimals
// rounded half-up to 2 places; never binary floats, so repeated fee
// calculations cannot drift.
package money

import (
	"github.com/shopspring/decimal"
)

// Platform-wide fee defaults. Frozen onto each Payment at creation time.
var (
	// PlatformFeePct is the share the platform keeps (10%).
	PlatformFeePct = decimal.RequireFromString("0.10")
	// ProcessingFeePct + ProcessingFeeFixed approximate the card
	// processor's pricing (2.9% + $0.30).
	ProcessingFeePct   = decimal.RequireFromString("0.029")
	ProcessingFeeFixed = decimal.RequireFromString("0.30")
)

// Discount types with real arithmetic behind them. The catalog also carries
// marketing labels (BUNDLE, EARLY_BIRD, FLASH_SALE); those compute to zero.
const (
	DiscountPercentage  = "PERCENTAGE"
	DiscountFixedAmount = "FIXED_AMOUNT"
)

// DefaultTaxRates is the flat per-country lookup. Unknown countries tax at 0.
var DefaultTaxRates = map[string]decimal.Decimal{
	"US": decimal.RequireFromString("0.08"),
	"FR": decimal.RequireFromString("0.20"),
	"UK": decimal.RequireFromString("0.20"),
	"DE": decimal.RequireFromString("0.19"),
	"CA": decimal.RequireFromString("0.13"),
}

// SupportedCurrencies for inbound purchase requests.
var SupportedCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "CAD": true,
	"AUD": true, "JPY": true, "CNY": true,
}

const DefaultCurrency = "USD"

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// PlatformFee returns the platform's cut at the default percentage.
func PlatformFee(amount decimal.Decimal) decimal.Decimal {
	return PlatformFeeAt(amount, PlatformFeePct)
}

// PlatformFeeAt computes the platform fee at an explicit percentage.
func PlatformFeeAt(amount, pct decimal.Decimal) decimal.Decimal {
	return round2(amount.Mul(pct))
}

// ProcessingFee returns the processor's cut at the default rate.
func ProcessingFee(amount decimal.Decimal) decimal.Decimal {
	return ProcessingFeeAt(amount, ProcessingFeePct, ProcessingFeeFixed)
}

// ProcessingFeeAt computes percentage-plus-fixed processing fees.
func ProcessingFeeAt(amount, pct, fixed decimal.Decimal) decimal.Decimal {
	return round2(amount.Mul(pct).Add(fixed))
}

// NetAmount is what remains for the seller after both fees.
func NetAmount(amount, platformFee, processingFee decimal.Decimal) decimal.Decimal {
	return round2(amount.Sub(platformFee).Sub(processingFee))
}

// Tax looks up the flat rate for countryCode in rates and applies it.
// An unknown country code yields zero tax.
func Tax(amount decimal.Decimal, countryCode string, rates map[string]decimal.Decimal) decimal.Decimal {
	rate, ok := rates[countryCode]
	if !ok {
		return decimal.Zero.Round(2)
	}
	return round2(amount.Mul(rate))
}

// ApplyDiscount reduces amount by a percentage or fixed value.
// The result is clamped at zero; a discount can never turn a charge into
// a credit.
func ApplyDiscount(amount decimal.Decimal, discountType string, value decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch discountType {
	case DiscountPercentage:
		discount = amount.Mul(value.Div(decimal.NewFromInt(100)))
	case DiscountFixedAmount:
		discount = value
	default:
		discount = decimal.Zero
	}

	result := amount.Sub(discount)
	if result.IsNegative() {
		result = decimal.Zero
	}
	return round2(result)
}
