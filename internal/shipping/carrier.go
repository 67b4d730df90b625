package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/craftline/storefront-backend/pkg/config"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/types"
)

const responseBodyReadLimit int64 = 1024

// ShipmentRequest carries what the carrier needs to book a consignment.
type ShipmentRequest struct {
	OrderNumber    string
	CustomerName   string
	CustomerPhone  string
	Address        types.Address
	AmountCents    int
	CODAmountCents int
}

// ShipmentInfo is the carrier's booking result.
type ShipmentInfo struct {
	AWBNumber   string
	CourierName string
}

// TrackingStatus is one tracking checkpoint reported by the carrier.
type TrackingStatus struct {
	Status    string
	Location  string
	Timestamp time.Time
}

// CarrierAdapter is the shipping provider capability surface.
type CarrierAdapter interface {
	CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentInfo, error)
	SchedulePickup(ctx context.Context, awb string) error
	Track(ctx context.Context, awb string) ([]TrackingStatus, error)
}

type restCarrier struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewRESTCarrier builds the HTTP carrier client from configuration.
func NewRESTCarrier(cfg config.CarrierConfig) (CarrierAdapter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("carrier base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("carrier api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &restCarrier{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
	}, nil
}

func (c *restCarrier) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentInfo, error) {
	if req.OrderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}

	payload := map[string]any{
		"reference":    req.OrderNumber,
		"consignee":    req.CustomerName,
		"phone":        req.CustomerPhone,
		"address":      req.Address,
		"amount":       req.AmountCents,
		"cod_amount":   req.CODAmountCents,
		"payment_mode": paymentMode(req.CODAmountCents),
	}

	var resp struct {
		AWB     string `json:"awb"`
		Courier string `json:"courier"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/shipments", payload, &resp); err != nil {
		return nil, err
	}
	if resp.AWB == "" {
		return nil, pkgerrors.New(pkgerrors.CodeShipmentCreation, "carrier returned no awb")
	}
	return &ShipmentInfo{AWBNumber: resp.AWB, CourierName: resp.Courier}, nil
}

func (c *restCarrier) SchedulePickup(ctx context.Context, awb string) error {
	if strings.TrimSpace(awb) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "awb required")
	}
	path := fmt.Sprintf("/v1/shipments/%s/pickup", awb)
	return c.do(ctx, http.MethodPost, path, map[string]any{}, nil)
}

func (c *restCarrier) Track(ctx context.Context, awb string) ([]TrackingStatus, error) {
	if strings.TrimSpace(awb) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "awb required")
	}

	var resp struct {
		Checkpoints []struct {
			Status    string    `json:"status"`
			Location  string    `json:"location"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"checkpoints"`
	}
	path := fmt.Sprintf("/v1/shipments/%s/track", awb)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	checkpoints := make([]TrackingStatus, 0, len(resp.Checkpoints))
	for _, cp := range resp.Checkpoints {
		checkpoints = append(checkpoints, TrackingStatus{
			Status:    cp.Status,
			Location:  cp.Location,
			Timestamp: cp.Timestamp,
		})
	}
	return checkpoints, nil
}

func (c *restCarrier) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeShipmentCreation, err, "marshal carrier request")
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeShipmentCreation, err, "build carrier request")
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeShipmentCreation, err, "execute carrier request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeShipmentCreation,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"carrier request failed")
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeShipmentCreation, err, "decode carrier response")
		}
	}
	return nil
}

func paymentMode(codAmountCents int) string {
	if codAmountCents > 0 {
		return "cod"
	}
	return "prepaid"
}
