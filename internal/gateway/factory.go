package gateway

import (
	"fmt"
	"strings"
)

// Payment methods accepted on inbound purchase requests. Several methods
// can route to the same adapter.
const (
	MethodCreditCard   = "CREDIT_CARD"
	MethodDebitCard    = "DEBIT_CARD"
	MethodCard         = "CARD"
	MethodWallet       = "WALLET"
	MethodPayPal       = "PAYPAL"
	MethodApplePay     = "APPLE_PAY"
	MethodGooglePay    = "GOOGLE_PAY"
	MethodBankTransfer = "BANK_TRANSFER"
	MethodMobileMoney  = "MOBILE_MONEY"
)

// Factory maps a payment method to its adapter. Providers are added by
// registering a new Adapter variant, never by structural typing; an
// unregistered method fails with ErrUnsupportedGateway.
type Factory struct {
	adapters map[string]Adapter
}

func NewFactory() *Factory {
	return &Factory{adapters: make(map[string]Adapter)}
}

// Register binds a payment method to an adapter. Method matching is
// case-insensitive.
func (f *Factory) Register(method string, a Adapter) {
	f.adapters[strings.ToUpper(strings.TrimSpace(method))] = a
}

// ForMethod resolves the adapter for a payment method.
func (f *Factory) ForMethod(method string) (Adapter, error) {
	a, ok := f.adapters[strings.ToUpper(strings.TrimSpace(method))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGateway, method)
	}
	return a, nil
}
