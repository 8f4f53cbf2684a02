package transactions

import "time"

// Transaction is one payment attempt against a priced product package.
// Amount is fixed at creation (price_cents * quantity) and never recomputed;
// webhook events are checked against it, not against the current catalog price.
type Transaction struct {
	ID               string    `json:"id"`
	ProductPackageID string    `json:"product_package_id"`
	ClientID         string    `json:"client_id"`
	Reference        string    `json:"reference"`
	AmountCents      int64     `json:"amount_cents"`
	Quantity         int       `json:"quantity"`
	PaymentMethod    string    `json:"payment_method"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
