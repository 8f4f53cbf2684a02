package payments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sojourn-travel/sojourn-payments/internal/catalog"
	"github.com/sojourn-travel/sojourn-payments/internal/lotus"
	"github.com/sojourn-travel/sojourn-payments/internal/transactions"
)

type fakeGateway struct {
	initCalls   int
	initAmount  int64
	initErr     error
	checkout    lotus.Checkout
	verifyCalls int
	verifyErr   error
	verify      lotus.VerifyResult
}

func (g *fakeGateway) InitializeCheckout(ctx context.Context, amountCents int64, currency string, metadata map[string]any) (lotus.Checkout, error) {
	g.initCalls++
	g.initAmount = amountCents
	if g.initErr != nil {
		return lotus.Checkout{}, g.initErr
	}
	return g.checkout, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, reference string) (lotus.VerifyResult, error) {
	g.verifyCalls++
	if g.verifyErr != nil {
		return lotus.VerifyResult{}, g.verifyErr
	}
	return g.verify, nil
}

func (g *fakeGateway) FetchCheckoutStatus(ctx context.Context, reference string) (json.RawMessage, error) {
	return json.RawMessage(`{"success":true}`), nil
}

// fakeTxSvc keeps the store's conditional-settle semantics in a map.
type fakeTxSvc struct {
	byRef       map[string]transactions.Transaction
	createCalls int
	settleCalls int
}

func newFakeTxSvc() *fakeTxSvc {
	return &fakeTxSvc{byRef: map[string]transactions.Transaction{}}
}

func (s *fakeTxSvc) Create(ctx context.Context, in transactions.CreateInput) (transactions.Transaction, error) {
	s.createCalls++
	if _, ok := s.byRef[in.Reference]; ok {
		return transactions.Transaction{}, transactions.ErrDuplicateReference
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	t := transactions.Transaction{
		ID:               "tx-" + in.Reference,
		ProductPackageID: in.ProductPackageID,
		ClientID:         in.ClientID,
		Reference:        in.Reference,
		AmountCents:      1000 * int64(qty),
		Quantity:         qty,
		PaymentMethod:    in.PaymentMethod,
		Status:           transactions.StatusPending,
	}
	s.byRef[in.Reference] = t
	return t, nil
}

func (s *fakeTxSvc) Settle(ctx context.Context, reference string, to transactions.Status) (transactions.Transaction, bool, error) {
	s.settleCalls++
	t, ok := s.byRef[reference]
	if !ok {
		return transactions.Transaction{}, false, transactions.ErrNotFound
	}
	if t.Status != transactions.StatusPending {
		return t, false, nil
	}
	t.Status = to
	s.byRef[reference] = t
	return t, true, nil
}

func (s *fakeTxSvc) FindByReference(ctx context.Context, reference string) (transactions.Transaction, error) {
	t, ok := s.byRef[reference]
	if !ok {
		return transactions.Transaction{}, transactions.ErrNotFound
	}
	return t, nil
}

type stubPricer struct{ prices map[string]int64 }

func (p *stubPricer) FindPackage(ctx context.Context, id string) (catalog.Package, error) {
	price, ok := p.prices[id]
	if !ok {
		return catalog.Package{}, catalog.ErrPackageNotFound
	}
	return catalog.Package{ID: id, PriceCents: price}, nil
}

func newOrchestrator(gw *fakeGateway, txs *fakeTxSvc) *Orchestrator {
	return &Orchestrator{
		Gateway:  gw,
		Txns:     txs,
		Packages: &stubPricer{prices: map[string]int64{"P1": 1000}},
		Currency: "NGN",
	}
}

func TestInitializePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("gateway gets the computed total, record keyed by gateway reference", func(t *testing.T) {
		gw := &fakeGateway{checkout: lotus.Checkout{AuthorizationURL: "https://pay.example/x", Reference: "R1"}}
		txs := newFakeTxSvc()
		o := newOrchestrator(gw, txs)

		res, err := o.InitializePayment(ctx, "C1", InitializeInput{ProductPackageID: "P1", Quantity: 2})
		require.NoError(t, err)
		require.Equal(t, int64(2000), gw.initAmount)
		require.Equal(t, "R1", res.Reference)
		require.Equal(t, "https://pay.example/x", res.AuthorizationURL)

		stored, err := txs.FindByReference(ctx, "R1")
		require.NoError(t, err)
		require.Equal(t, transactions.StatusPending, stored.Status)
		require.Equal(t, int64(2000), stored.AmountCents)
	})

	t.Run("gateway failure leaves the store untouched", func(t *testing.T) {
		gw := &fakeGateway{initErr: &lotus.GatewayError{Op: "initialize", Message: "provider down"}}
		txs := newFakeTxSvc()
		o := newOrchestrator(gw, txs)

		_, err := o.InitializePayment(ctx, "C1", InitializeInput{ProductPackageID: "P1", Quantity: 1})
		var gwErr *lotus.GatewayError
		require.ErrorAs(t, err, &gwErr)
		require.Zero(t, txs.createCalls)
		require.Empty(t, txs.byRef)
	})

	t.Run("unknown package short-circuits before the gateway", func(t *testing.T) {
		gw := &fakeGateway{}
		txs := newFakeTxSvc()
		o := newOrchestrator(gw, txs)

		_, err := o.InitializePayment(ctx, "C1", InitializeInput{ProductPackageID: "P404"})
		require.ErrorIs(t, err, catalog.ErrPackageNotFound)
		require.Zero(t, gw.initCalls)
		require.Zero(t, txs.createCalls)
	})

	t.Run("negative quantity rejected", func(t *testing.T) {
		gw := &fakeGateway{}
		o := newOrchestrator(gw, newFakeTxSvc())

		_, err := o.InitializePayment(ctx, "C1", InitializeInput{ProductPackageID: "P1", Quantity: -2})
		require.Error(t, err)
		require.Zero(t, gw.initCalls)
	})
}

func TestVerifyPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("provider-confirmed success settles the transaction", func(t *testing.T) {
		gw := &fakeGateway{
			checkout: lotus.Checkout{Reference: "R1"},
			verify:   lotus.VerifyResult{Status: "successful", Reference: "R1"},
		}
		txs := newFakeTxSvc()
		o := newOrchestrator(gw, txs)
		_, err := o.InitializePayment(ctx, "C1", InitializeInput{ProductPackageID: "P1"})
		require.NoError(t, err)

		tx, err := o.VerifyPayment(ctx, "R1")
		require.NoError(t, err)
		require.Equal(t, transactions.StatusSuccess, tx.Status)
	})

	t.Run("gateway denial propagates, nothing settled", func(t *testing.T) {
		gw := &fakeGateway{verifyErr: &lotus.GatewayError{Op: "verify", Message: "payment verification failed"}}
		txs := newFakeTxSvc()
		o := newOrchestrator(gw, txs)

		_, err := o.VerifyPayment(ctx, "R1")
		var gwErr *lotus.GatewayError
		require.ErrorAs(t, err, &gwErr)
		require.Zero(t, txs.settleCalls)
	})

	t.Run("verify after webhook settlement is a no-op returning the settled row", func(t *testing.T) {
		gw := &fakeGateway{
			checkout: lotus.Checkout{Reference: "R1"},
			verify:   lotus.VerifyResult{Status: "successful", Reference: "R1"},
		}
		txs := newFakeTxSvc()
		o := newOrchestrator(gw, txs)
		_, err := o.InitializePayment(ctx, "C1", InitializeInput{ProductPackageID: "P1"})
		require.NoError(t, err)

		_, err = o.VerifyPayment(ctx, "R1")
		require.NoError(t, err)
		tx, err := o.VerifyPayment(ctx, "R1")
		require.NoError(t, err)
		require.Equal(t, transactions.StatusSuccess, tx.Status)
	})
}

func successEvent(reference string, amount int64) WebhookEvent {
	return WebhookEvent{
		Service: "payments",
		Type:    "card",
		Data:    WebhookData{Status: "successful", Reference: reference, AmountCents: amount},
	}
}

func TestProcessWebhookEvent(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Orchestrator, *fakeTxSvc) {
		gw := &fakeGateway{checkout: lotus.Checkout{Reference: "R1"}}
		txs := newFakeTxSvc()
		o := newOrchestrator(gw, txs)
		_, err := o.InitializePayment(ctx, "C1", InitializeInput{ProductPackageID: "P1", Quantity: 2})
		require.NoError(t, err)
		return o, txs
	}

	t.Run("matching success settles to success", func(t *testing.T) {
		o, txs := setup(t)

		outcome, err := o.ProcessWebhookEvent(ctx, successEvent("R1", 2000))
		require.NoError(t, err)
		require.True(t, outcome.Applied)
		require.Equal(t, transactions.StatusSuccess, outcome.Status)
		require.Equal(t, transactions.StatusSuccess, txs.byRef["R1"].Status)
	})

	t.Run("replayed success event is a no-op, not an error", func(t *testing.T) {
		o, txs := setup(t)

		_, err := o.ProcessWebhookEvent(ctx, successEvent("R1", 2000))
		require.NoError(t, err)
		settlesBefore := txs.settleCalls

		outcome, err := o.ProcessWebhookEvent(ctx, successEvent("R1", 2000))
		require.NoError(t, err)
		require.False(t, outcome.Applied)
		require.Equal(t, "already settled", outcome.Reason)
		require.Equal(t, settlesBefore, txs.settleCalls)
		require.Equal(t, transactions.StatusSuccess, txs.byRef["R1"].Status)
	})

	t.Run("amount mismatch settles to failed, never success", func(t *testing.T) {
		o, txs := setup(t)

		outcome, err := o.ProcessWebhookEvent(ctx, successEvent("R1", 1500))
		require.NoError(t, err)
		require.True(t, outcome.Applied)
		require.Equal(t, transactions.StatusFailed, outcome.Status)
		require.Equal(t, "amount mismatch", outcome.Reason)
		require.Equal(t, transactions.StatusFailed, txs.byRef["R1"].Status)
	})

	t.Run("provider-reported failure settles to failed", func(t *testing.T) {
		o, txs := setup(t)

		ev := successEvent("R1", 2000)
		ev.Data.Status = "failed"
		outcome, err := o.ProcessWebhookEvent(ctx, ev)
		require.NoError(t, err)
		require.True(t, outcome.Applied)
		require.Equal(t, transactions.StatusFailed, outcome.Status)
		require.Equal(t, transactions.StatusFailed, txs.byRef["R1"].Status)
	})

	t.Run("unknown reference discards silently", func(t *testing.T) {
		o, txs := setup(t)

		outcome, err := o.ProcessWebhookEvent(ctx, successEvent("R999", 2000))
		require.NoError(t, err)
		require.False(t, outcome.Applied)
		require.Equal(t, "unknown reference", outcome.Reason)
		require.NotContains(t, txs.byRef, "R999")
	})

	t.Run("non-payment service discards before any lookup", func(t *testing.T) {
		o, txs := setup(t)
		findsBefore := len(txs.byRef)

		ev := successEvent("R1", 2000)
		ev.Service = "transfers"
		outcome, err := o.ProcessWebhookEvent(ctx, ev)
		require.NoError(t, err)
		require.False(t, outcome.Applied)
		require.Len(t, txs.byRef, findsBefore)
		require.Equal(t, transactions.StatusPending, txs.byRef["R1"].Status)
	})

	t.Run("missing reference discards", func(t *testing.T) {
		o, _ := setup(t)

		ev := successEvent("", 2000)
		outcome, err := o.ProcessWebhookEvent(ctx, ev)
		require.NoError(t, err)
		require.False(t, outcome.Applied)
	})

	t.Run("already-failed row is not flipped by a late success", func(t *testing.T) {
		o, txs := setup(t)

		_, err := o.ProcessWebhookEvent(ctx, successEvent("R1", 1500))
		require.NoError(t, err)
		require.Equal(t, transactions.StatusFailed, txs.byRef["R1"].Status)

		outcome, err := o.ProcessWebhookEvent(ctx, successEvent("R1", 2000))
		require.NoError(t, err)
		require.False(t, outcome.Applied)
		require.Equal(t, transactions.StatusFailed, txs.byRef["R1"].Status)
	})
}
