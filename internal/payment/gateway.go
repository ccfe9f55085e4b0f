// Package payment adapts the hosted payment-link gateway. The gateway is
// treated as slow and duplicating: success may arrive via its webhook, the
// browser callback, and the reconciliation poll for the same order.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type Customer struct {
	Name    string
	Email   string
	Contact string
}

type Request struct {
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	Description string
	Customer    Customer
	Notes       map[string]string
}

// Handle identifies a created payment request. ProviderReference is the
// correlation id persisted on the Order; PayURL is handed to the customer.
type Handle struct {
	ProviderReference string
	PayURL            string
}

type StatusResult struct {
	Paid      bool
	PaymentID string
	Status    string
}

type Gateway interface {
	CreatePaymentRequest(ctx context.Context, req Request) (*Handle, error)
	CheckStatus(ctx context.Context, providerReference string) (*StatusResult, error)
}
