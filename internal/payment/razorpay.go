// Package payment implements the verification gateway the reservation
// engine consults before confirming a booking.  The engine only depends
// on the Gateway interface; the Razorpay client is the production
// implementation.
package payment

import (
    "context"
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "time"
)

// StatusCaptured is the provider status a payment must reach before any
// seat may be confirmed against it.
const StatusCaptured = "captured"

// ErrGatewayUnavailable signals a transient provider failure: nothing
// was persisted and the whole booking attempt is safe to retry.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrPaymentNotFound is returned when the provider does not know the
// payment id.
var ErrPaymentNotFound = errors.New("payment not found")

// Payment is the provider's view of a captured payment.
type Payment struct {
    ID       string `json:"id"`
    Status   string `json:"status"`
    OrderID  string `json:"order_id"`
    Amount   int64  `json:"amount"` // smallest currency unit
    Currency string `json:"currency"`
}

// Gateway validates a payment claim against the provider.  Implemented
// by RazorpayClient in production and by fakes in tests.
type Gateway interface {
    // VerifySignature checks the HMAC the provider attached to the
    // checkout callback.  A false return means the claim is forged or
    // corrupted and must be rejected without touching the store.
    VerifySignature(orderID, paymentID, signature string) bool
    // FetchPayment retrieves the payment from the provider so the engine
    // can confirm it was actually captured and belongs to the claimed
    // provider order.
    FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// RazorpayClient talks to the Razorpay REST API with basic auth.
type RazorpayClient struct {
    keyID     string
    keySecret string
    baseURL   string
    client    *http.Client
}

// NewRazorpayClient builds a client for the given API key pair.
func NewRazorpayClient(keyID, keySecret string) *RazorpayClient {
    return &RazorpayClient{
        keyID:     keyID,
        keySecret: keySecret,
        baseURL:   "https://api.razorpay.com",
        client:    &http.Client{Timeout: 10 * time.Second},
    }
}

// NewRazorpayClientWithBaseURL is used by tests to point the client at a
// stub server.
func NewRazorpayClientWithBaseURL(keyID, keySecret, baseURL string) *RazorpayClient {
    c := NewRazorpayClient(keyID, keySecret)
    c.baseURL = baseURL
    return c
}

// VerifySignature recomputes the provider's checkout signature:
// HMAC-SHA256 over "<order_id>|<payment_id>" keyed with the API secret,
// hex encoded.  Comparison is constant time.
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) bool {
    mac := hmac.New(sha256.New, []byte(c.keySecret))
    mac.Write([]byte(orderID + "|" + paymentID))
    expected := hex.EncodeToString(mac.Sum(nil))
    return hmac.Equal([]byte(expected), []byte(signature))
}

// FetchPayment retrieves a payment entity from the provider.  Network
// failures and 5xx responses map to ErrGatewayUnavailable so callers can
// treat them as retryable; a 4xx means the claim itself is bad.
func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet,
        c.baseURL+"/v1/payments/"+paymentID, nil)
    if err != nil {
        return nil, err
    }
    req.SetBasicAuth(c.keyID, c.keySecret)

    resp, err := c.client.Do(req)
    if err != nil {
        return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
    }
    defer resp.Body.Close()

    switch {
    case resp.StatusCode == http.StatusOK:
        var p Payment
        if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
            return nil, fmt.Errorf("decode payment response: %w", err)
        }
        return &p, nil
    case resp.StatusCode >= http.StatusInternalServerError:
        return nil, fmt.Errorf("%w: provider returned %d", ErrGatewayUnavailable, resp.StatusCode)
    case resp.StatusCode == http.StatusNotFound:
        return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
    default:
        return nil, fmt.Errorf("fetch payment %s: provider returned %d", paymentID, resp.StatusCode)
    }
}
