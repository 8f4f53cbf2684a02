package redisx

import "time"

const (
	// Cache transaction status by gateway reference: tx_status:{reference} -> json
	KeyTxStatus = "tx_status:%s"

	// Webhook replay short-circuit: webhook:seen:{reference}:{status} -> "1".
	// Advisory only; the conditional update in the store is the real guard.
	KeyWebhookSeen = "webhook:seen:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLWebhookSeen = 48 * time.Hour
	TTLDedup       = 48 * time.Hour
)
