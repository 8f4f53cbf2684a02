package payments

import (
	"encoding/json"
	"time"
)

const (
	TopicPaymentSettled = "payment.settled"
	TopicPaymentFailed  = "payment.failed"
)

const (
	EventPaymentSettled = "PaymentSettled"
	EventPaymentFailed  = "PaymentFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // gateway reference
	Payload       json.RawMessage `json:"payload"`
}

type SettlementPayload struct {
	TransactionID    string `json:"transaction_id"`
	Reference        string `json:"reference"`
	ClientID         string `json:"client_id"`
	ProductPackageID string `json:"product_package_id"`
	AmountCents      int64  `json:"amount_cents"`
	FinalStatus      string `json:"final_status"`     // success | failed
	Reason           string `json:"reason,omitempty"` // e.g. "amount mismatch"
}

// Partition key = reference, so all settlement events for one payment stay ordered.
func PartitionKey(reference string) []byte { return []byte(reference) }
