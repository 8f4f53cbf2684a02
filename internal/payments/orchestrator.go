package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/sojourn-travel/sojourn-payments/internal/kafkax"
	"github.com/sojourn-travel/sojourn-payments/internal/lotus"
	"github.com/sojourn-travel/sojourn-payments/internal/redisx"
	"github.com/sojourn-travel/sojourn-payments/internal/transactions"
)

// Gateway is the outbound provider surface. *lotus.Client implements it.
type Gateway interface {
	InitializeCheckout(ctx context.Context, amountCents int64, currency string, metadata map[string]any) (lotus.Checkout, error)
	VerifyPayment(ctx context.Context, reference string) (lotus.VerifyResult, error)
	FetchCheckoutStatus(ctx context.Context, reference string) (json.RawMessage, error)
}

// TransactionService is the single write path into transaction records.
type TransactionService interface {
	Create(ctx context.Context, in transactions.CreateInput) (transactions.Transaction, error)
	Settle(ctx context.Context, reference string, to transactions.Status) (transactions.Transaction, bool, error)
	FindByReference(ctx context.Context, reference string) (transactions.Transaction, error)
}

// Publisher is satisfied by *kafkax.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Orchestrator coordinates package pricing, the gateway and the transaction
// service. The gateway call always happens before the local write, so a
// gateway failure leaves no orphaned pending record.
type Orchestrator struct {
	Gateway  Gateway
	Txns     TransactionService
	Packages transactions.PackagePricer

	// optional plumbing; nil-safe so unit tests can omit them
	ProducerSettled Publisher
	ProducerFailed  Publisher
	Redis           *redis.Client
	ServiceName     string

	Currency string
}

type InitializeInput struct {
	ProductPackageID string `json:"product_package_id"`
	Quantity         int    `json:"quantity"`
	PaymentMethod    string `json:"payment_method"`
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// InitializePayment resolves the package, opens a gateway checkout and then
// persists the pending transaction under the gateway-issued reference.
func (o *Orchestrator) InitializePayment(ctx context.Context, clientID string, in InitializeInput) (InitializeResult, error) {
	if in.Quantity < 0 {
		return InitializeResult{}, fmt.Errorf("initialize payment: negative quantity %d", in.Quantity)
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}

	pkg, err := o.Packages.FindPackage(ctx, in.ProductPackageID)
	if err != nil {
		return InitializeResult{}, err
	}
	totalCents := pkg.PriceCents * int64(qty)

	checkout, err := o.Gateway.InitializeCheckout(ctx, totalCents, o.Currency, map[string]any{
		"client_id":          clientID,
		"product_package_id": in.ProductPackageID,
	})
	if err != nil {
		// no local state written on gateway failure
		return InitializeResult{}, err
	}

	if _, err := o.Txns.Create(ctx, transactions.CreateInput{
		ProductPackageID: in.ProductPackageID,
		ClientID:         clientID,
		Reference:        checkout.Reference,
		Quantity:         qty,
		PaymentMethod:    in.PaymentMethod,
	}); err != nil {
		return InitializeResult{}, err
	}

	return InitializeResult{
		AuthorizationURL: checkout.AuthorizationURL,
		Reference:        checkout.Reference,
	}, nil
}

// VerifyPayment is the synchronous, client-polled settlement path.
func (o *Orchestrator) VerifyPayment(ctx context.Context, reference string) (transactions.Transaction, error) {
	if _, err := o.Gateway.VerifyPayment(ctx, reference); err != nil {
		return transactions.Transaction{}, err
	}

	tx, appliedNow, err := o.Txns.Settle(ctx, reference, transactions.StatusSuccess)
	if err != nil {
		return transactions.Transaction{}, err
	}
	if appliedNow {
		o.afterSettlement(ctx, tx, "")
	}
	return tx, nil
}

func (o *Orchestrator) GetTransaction(ctx context.Context, reference string) (transactions.Transaction, error) {
	return o.Txns.FindByReference(ctx, reference)
}

func (o *Orchestrator) FetchCheckoutStatus(ctx context.Context, reference string) (json.RawMessage, error) {
	return o.Gateway.FetchCheckoutStatus(ctx, reference)
}

// ProcessWebhookEvent is the asynchronous settlement path. Business-level
// mismatches never return an error; they settle to failed or discard, so the
// provider always gets its acknowledgement. Only storage faults error out.
func (o *Orchestrator) ProcessWebhookEvent(ctx context.Context, event WebhookEvent) (WebhookOutcome, error) {
	if event.Service != "payments" || event.Data.Reference == "" {
		return discarded("not a payment event"), nil
	}
	reference := event.Data.Reference

	// advisory replay short-circuit; the store's conditional update is the
	// real guard
	if o.seenDelivery(ctx, reference, event.Data.Status) {
		return discarded("replayed delivery"), nil
	}

	tx, err := o.Txns.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, transactions.ErrNotFound) {
			// unknown or foreign reference: never an error, or the provider
			// retries a permanently-unprocessable event forever
			return discarded("unknown reference"), nil
		}
		return WebhookOutcome{}, err
	}

	if tx.Status == transactions.StatusSuccess {
		return discarded("already settled"), nil
	}

	if event.Data.Status == ProviderStatusSuccessful {
		if event.Data.AmountCents != tx.AmountCents {
			return o.settle(ctx, event, transactions.StatusFailed, "amount mismatch")
		}
		return o.settle(ctx, event, transactions.StatusSuccess, "")
	}
	return o.settle(ctx, event, transactions.StatusFailed, "provider reported "+event.Data.Status)
}

func (o *Orchestrator) settle(ctx context.Context, event WebhookEvent, to transactions.Status, note string) (WebhookOutcome, error) {
	tx, appliedNow, err := o.Txns.Settle(ctx, event.Data.Reference, to)
	if err != nil {
		return WebhookOutcome{}, err
	}
	if !appliedNow {
		return discarded("already settled"), nil
	}
	o.markDelivery(ctx, event.Data.Reference, event.Data.Status)
	o.afterSettlement(ctx, tx, note)
	return applied(to, note), nil
}

// afterSettlement refreshes the status cache and publishes the settlement
// event. Both are best-effort.
func (o *Orchestrator) afterSettlement(ctx context.Context, tx transactions.Transaction, note string) {
	if o.Redis != nil {
		key := fmt.Sprintf(redisx.KeyTxStatus, tx.Reference)
		_ = o.Redis.Set(ctx, key, kafkax.MustMarshal(tx), redisx.TTLStatusCache).Err()
	}

	producer := o.ProducerSettled
	eventType := EventPaymentSettled
	if tx.Status == transactions.StatusFailed {
		producer = o.ProducerFailed
		eventType = EventPaymentFailed
	}
	if producer == nil {
		return
	}

	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      o.ServiceName,
		CorrelationID: tx.Reference,
		Payload: kafkax.MustMarshal(SettlementPayload{
			TransactionID:    tx.ID,
			Reference:        tx.Reference,
			ClientID:         tx.ClientID,
			ProductPackageID: tx.ProductPackageID,
			AmountCents:      tx.AmountCents,
			FinalStatus:      string(tx.Status),
			Reason:           note,
		}),
	}
	producer.Publish(PartitionKey(tx.Reference), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (o *Orchestrator) seenDelivery(ctx context.Context, reference, status string) bool {
	if o.Redis == nil {
		return false
	}
	key := fmt.Sprintf(redisx.KeyWebhookSeen, reference, status)
	seen, _ := redisx.Exists(ctx, o.Redis, key)
	return seen
}

// markDelivery is keyed by the status the provider delivered, so an exact
// replay of the same delivery short-circuits in seenDelivery.
func (o *Orchestrator) markDelivery(ctx context.Context, reference, deliveredStatus string) {
	if o.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyWebhookSeen, reference, deliveredStatus)
	_ = o.Redis.Set(ctx, key, "1", redisx.TTLWebhookSeen).Err()
}
