package payments

import (
	"github.com/sojourn-travel/sojourn-payments/internal/transactions"
)

// statuses the provider reports in webhook payloads
const ProviderStatusSuccessful = "successful"

// WebhookEvent is the provider's callback envelope. Only the fields the
// settlement flow needs; card details and client metadata are ignored.
type WebhookEvent struct {
	Service string      `json:"service"`
	Type    string      `json:"type"`
	Data    WebhookData `json:"data"`
}

type WebhookData struct {
	Status      string `json:"status"`
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount"`
}

// WebhookOutcome is the tagged result of processing one delivery, so callers
// and tests can tell which branch fired without probing side effects.
type WebhookOutcome struct {
	Applied bool
	Status  transactions.Status // new status when Applied
	Reason  string              // discard reason, or note like "amount mismatch"
}

func discarded(reason string) WebhookOutcome {
	return WebhookOutcome{Reason: reason}
}

func applied(status transactions.Status, reason string) WebhookOutcome {
	return WebhookOutcome{Applied: true, Status: status, Reason: reason}
}
