package httpx

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/sojourn-travel/sojourn-payments/internal/catalog"
	"github.com/sojourn-travel/sojourn-payments/internal/lotus"
	"github.com/sojourn-travel/sojourn-payments/internal/payments"
	"github.com/sojourn-travel/sojourn-payments/internal/redisx"
	"github.com/sojourn-travel/sojourn-payments/internal/transactions"
)

// PaymentFlow is what the handler needs from the orchestrator.
type PaymentFlow interface {
	InitializePayment(ctx context.Context, clientID string, in payments.InitializeInput) (payments.InitializeResult, error)
	VerifyPayment(ctx context.Context, reference string) (transactions.Transaction, error)
	GetTransaction(ctx context.Context, reference string) (transactions.Transaction, error)
	FetchCheckoutStatus(ctx context.Context, reference string) (json.RawMessage, error)
	ProcessWebhookEvent(ctx context.Context, event payments.WebhookEvent) (payments.WebhookOutcome, error)
}

type PackageLister interface {
	ListPackages(ctx context.Context) ([]catalog.Package, error)
}

type PaymentsHandler struct {
	Flow     PaymentFlow
	Packages PackageLister
	Redis    *redis.Client
	Auth     func(http.Handler) http.Handler

	// shared secret the provider signs webhook bodies with
	WebhookSecret string
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Route("/payment", func(r chi.Router) {
		r.With(h.Auth).Post("/initialize", h.initialize)
		r.Get("/verify/{reference}", h.verify)
		r.Get("/transaction/{reference}", h.getTransaction)
		r.Get("/status/{reference}", h.checkoutStatus)
		r.Post("/", h.webhook)
	})
	r.Get("/packages", h.listPackages)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	var gw *lotus.GatewayError
	switch {
	case errors.Is(err, transactions.ErrNotFound), errors.Is(err, catalog.ErrPackageNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, transactions.ErrDuplicateReference):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &gw):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": gw.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *PaymentsHandler) initialize(w http.ResponseWriter, r *http.Request) {
	var in payments.InitializeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if in.ProductPackageID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product_package_id"})
		return
	}
	if in.Quantity < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be positive"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	res, err := h.Flow.InitializePayment(ctx, ClientID(r.Context()), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (h *PaymentsHandler) verify(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing reference"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	tx, err := h.Flow.VerifyPayment(ctx, reference)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *PaymentsHandler) getTransaction(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing reference"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first
	key := fmt.Sprintf(redisx.KeyTxStatus, reference)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	tx, err := h.Flow.GetTransaction(ctx, reference)
	if err != nil {
		writeErr(w, err)
		return
	}
	if h.Redis != nil {
		b, _ := json.Marshal(tx)
		_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *PaymentsHandler) checkoutStatus(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing reference"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	raw, err := h.Flow.FetchCheckoutStatus(ctx, reference)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

func (h *PaymentsHandler) listPackages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Packages.ListPackages(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// webhook authenticates the provider callback before any business logic runs.
// Signature is hex HMAC-SHA512 over the exact raw body; comparison is
// constant-time. After a valid signature the endpoint always acknowledges with
// 200, even when processing discards the event, so the provider stops retrying.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if !h.validSignature(body, r.Header.Get("signature")) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("Invalid signature"))
		return
	}

	var event payments.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	outcome, err := h.Flow.ProcessWebhookEvent(r.Context(), event)
	if err != nil {
		// acknowledge anyway; a storage fault here must not trigger an
		// endless provider retry loop
		log.Printf("webhook processing error: ref=%s err=%v", event.Data.Reference, err)
	} else if outcome.Applied {
		log.Printf("webhook applied: ref=%s status=%s note=%q", event.Data.Reference, outcome.Status, outcome.Reason)
	} else {
		log.Printf("webhook discarded: ref=%s reason=%q", event.Data.Reference, outcome.Reason)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Webhook received"))
}

func (h *PaymentsHandler) validSignature(body []byte, signature string) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil || len(provided) == 0 {
		return false
	}
	mac := hmac.New(sha512.New, []byte(h.WebhookSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}
