package payment

import (
    "context"
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func signClaim(secret, orderID, paymentID string) string {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write([]byte(orderID + "|" + paymentID))
    return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
    c := NewRazorpayClient("key_id", "key_secret")

    good := signClaim("key_secret", "order_1", "pay_1")
    assert.True(t, c.VerifySignature("order_1", "pay_1", good))

    assert.False(t, c.VerifySignature("order_1", "pay_1", "deadbeef"))
    assert.False(t, c.VerifySignature("order_2", "pay_1", good))
    assert.False(t, c.VerifySignature("order_1", "pay_2", good))

    wrongKey := signClaim("other_secret", "order_1", "pay_1")
    assert.False(t, c.VerifySignature("order_1", "pay_1", wrongKey))
}

func TestFetchPayment(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        user, pass, ok := r.BasicAuth()
        if !ok || user != "key_id" || pass != "key_secret" {
            w.WriteHeader(http.StatusUnauthorized)
            return
        }
        switch r.URL.Path {
        case "/v1/payments/pay_ok":
            w.Header().Set("Content-Type", "application/json")
            w.Write([]byte(`{"id":"pay_ok","status":"captured","order_id":"order_1","amount":25000,"currency":"INR"}`))
        case "/v1/payments/pay_pending":
            w.Header().Set("Content-Type", "application/json")
            w.Write([]byte(`{"id":"pay_pending","status":"authorized","order_id":"order_1","amount":25000,"currency":"INR"}`))
        case "/v1/payments/pay_boom":
            w.WriteHeader(http.StatusInternalServerError)
        default:
            w.WriteHeader(http.StatusNotFound)
        }
    }))
    defer srv.Close()

    c := NewRazorpayClientWithBaseURL("key_id", "key_secret", srv.URL)
    ctx := context.Background()

    t.Run("captured payment", func(t *testing.T) {
        p, err := c.FetchPayment(ctx, "pay_ok")
        require.NoError(t, err)
        assert.Equal(t, StatusCaptured, p.Status)
        assert.Equal(t, "order_1", p.OrderID)
        assert.Equal(t, int64(25000), p.Amount)
    })

    t.Run("uncaptured payment is returned as-is", func(t *testing.T) {
        p, err := c.FetchPayment(ctx, "pay_pending")
        require.NoError(t, err)
        assert.NotEqual(t, StatusCaptured, p.Status)
    })

    t.Run("provider 5xx is retryable", func(t *testing.T) {
        _, err := c.FetchPayment(ctx, "pay_boom")
        assert.ErrorIs(t, err, ErrGatewayUnavailable)
    })

    t.Run("unknown payment", func(t *testing.T) {
        _, err := c.FetchPayment(ctx, "pay_missing")
        assert.ErrorIs(t, err, ErrPaymentNotFound)
    })

    t.Run("network failure is retryable", func(t *testing.T) {
        down := NewRazorpayClientWithBaseURL("key_id", "key_secret", "http://127.0.0.1:0")
        _, err := down.FetchPayment(ctx, "pay_ok")
        assert.ErrorIs(t, err, ErrGatewayUnavailable)
    })
}
