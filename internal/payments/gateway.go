package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/craftline/storefront-backend/pkg/config"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

// Credentials is one key pair accepted by the payment gateway.
type Credentials struct {
	KeyID     string
	KeySecret string
}

// RemoteOrderRequest describes the order registered with the gateway before
// the buyer is sent to the hosted payment page.
type RemoteOrderRequest struct {
	AmountCents int
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// RefundRequest describes a refund against a captured payment. A zero
// amount requests a full refund.
type RefundRequest struct {
	RemotePaymentID string
	AmountCents     int
	Notes           map[string]string
}

// Gateway is the payment provider capability surface. Remote failures come
// back as PAYMENT_GATEWAY_ERROR; callers decide what local state to touch.
type Gateway interface {
	CreateRemoteOrder(ctx context.Context, creds Credentials, req RemoteOrderRequest) (string, error)
	Refund(ctx context.Context, creds Credentials, req RefundRequest) (string, error)
}

// VerifySignature checks the gateway callback signature: HMAC-SHA256 over
// "remoteOrderID|remotePaymentID" keyed with the secret, hex encoded.
func VerifySignature(keySecret, remoteOrderID, remotePaymentID, signature string) bool {
	if keySecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(remoteOrderID + "|" + remotePaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignPayment produces the signature the gateway would send for a payment.
// Used by tests and the sandbox tooling.
func SignPayment(keySecret, remoteOrderID, remotePaymentID string) string {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(remoteOrderID + "|" + remotePaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type restGateway struct {
	httpClient *http.Client
	baseURL    string
}

// NewRESTGateway builds the HTTP gateway client from configuration.
func NewRESTGateway(cfg config.GatewayConfig) (Gateway, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &restGateway{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}, nil
}

func (g *restGateway) CreateRemoteOrder(ctx context.Context, creds Credentials, req RemoteOrderRequest) (string, error) {
	if req.AmountCents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}

	payload := map[string]any{
		"amount":   req.AmountCents,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		payload["notes"] = req.Notes
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := g.post(ctx, creds, "/v1/orders", payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodePaymentGateway, "gateway returned no order id")
	}
	return resp.ID, nil
}

func (g *restGateway) Refund(ctx context.Context, creds Credentials, req RefundRequest) (string, error) {
	if strings.TrimSpace(req.RemotePaymentID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "remote payment id required")
	}
	if req.AmountCents < 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot be negative")
	}

	payload := map[string]any{}
	if req.AmountCents > 0 {
		payload["amount"] = req.AmountCents
	}
	if len(req.Notes) > 0 {
		payload["notes"] = req.Notes
	}

	var resp struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/v1/payments/%s/refund", req.RemotePaymentID)
	if err := g.post(ctx, creds, path, payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodePaymentGateway, "gateway returned no refund id")
	}
	return resp.ID, nil
}

func (g *restGateway) post(ctx context.Context, creds Credentials, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "marshal gateway request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "build gateway request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(creds.KeyID, creds.KeySecret)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "execute gateway request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"gateway request failed")
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "decode gateway response")
		}
	}
	return nil
}
