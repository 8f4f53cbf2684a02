package lotus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{
		BaseURL:   srv.URL,
		PublicKey: "pk_test",
		SecretKey: "sk_test",
		WalletID:  "master",
	})
	return c, srv
}

func TestInitializeCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns authorization url and reference", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/checkout/initialize", r.URL.Path)
			require.Equal(t, "pk_test", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "master", body["walletId"])
			require.Equal(t, "NGN", body["currency"])
			require.EqualValues(t, 2000, body["amount"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data": map[string]any{
					"authorization_url": "https://pay.example/abc",
					"reference":         "R1",
				},
			})
		})

		out, err := c.InitializeCheckout(ctx, 2000, "NGN", nil)
		require.NoError(t, err)
		require.Equal(t, "https://pay.example/abc", out.AuthorizationURL)
		require.Equal(t, "R1", out.Reference)
	})

	t.Run("non-success envelope becomes a GatewayError with the provider message", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "insufficient wallet"})
		})

		_, err := c.InitializeCheckout(ctx, 2000, "NGN", nil)
		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		require.Equal(t, "insufficient wallet", gwErr.Message)
		require.Equal(t, http.StatusBadRequest, gwErr.Status)
	})

	t.Run("missing reference in a success envelope is still an error", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{}})
		})

		_, err := c.InitializeCheckout(ctx, 2000, "NGN", nil)
		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
	})

	t.Run("transport failure surfaces as GatewayError", func(t *testing.T) {
		c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		srv.Close()

		_, err := c.InitializeCheckout(ctx, 2000, "NGN", nil)
		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		require.Error(t, gwErr.Err)
	})
}

func TestVerifyPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("success decodes the provider outcome", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/payment/verify/R1", r.URL.Path)
			require.Equal(t, "sk_test", r.Header.Get("x-api-key"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    map[string]any{"status": "successful", "reference": "R1", "amount": 2000},
			})
		})

		out, err := c.VerifyPayment(ctx, "R1")
		require.NoError(t, err)
		require.Equal(t, "successful", out.Status)
		require.Equal(t, int64(2000), out.AmountCents)
	})

	t.Run("denied verification errors", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
		})

		_, err := c.VerifyPayment(ctx, "R1")
		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		require.Equal(t, "payment verification failed", gwErr.Message)
	})
}

func TestFetchCheckoutStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("raw payload passes through", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/checkout/status/R1", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    map[string]any{"status": "completed", "reference": "R1"},
			})
		})

		raw, err := c.FetchCheckoutStatus(ctx, "R1")
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Equal(t, true, got["success"])
	})

	t.Run("non-success status payload errors", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "unknown checkout"})
		})

		_, err := c.FetchCheckoutStatus(ctx, "R1")
		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		require.Equal(t, "unknown checkout", gwErr.Message)
	})
}
