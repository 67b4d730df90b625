package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/craftline/storefront-backend/api/responses"
	"github.com/craftline/storefront-backend/api/validators"
	"github.com/craftline/storefront-backend/internal/cancellation"
	"github.com/craftline/storefront-backend/internal/cart"
	checkoutsvc "github.com/craftline/storefront-backend/internal/checkout"
	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/internal/payments"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
	"github.com/craftline/storefront-backend/pkg/pagination"
	"github.com/craftline/storefront-backend/pkg/types"
)

type checkoutLineBody struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Qty       int        `json:"qty" validate:"required,min=1"`
}

type checkoutBody struct {
	CustomerName    string             `json:"customer_name" validate:"required,max=200"`
	CustomerEmail   string             `json:"customer_email" validate:"required,email"`
	CustomerPhone   *string            `json:"customer_phone,omitempty"`
	ShippingAddress types.Address      `json:"shipping_address" validate:"required"`
	Lines           []checkoutLineBody `json:"lines" validate:"required,min=1,dive"`
	DiscountCents   int                `json:"discount_cents" validate:"min=0"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
}

type checkoutResponse struct {
	Order         any    `json:"order"`
	RemoteOrderID string `json:"remote_order_id,omitempty"`
	GatewayKeyID  string `json:"gateway_key_id,omitempty"`
}

// Checkout places an order for the store identified in the path.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := parseUUIDParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]cart.Line, len(body.Lines))
		for i, line := range body.Lines {
			lines[i] = cart.Line{ProductID: line.ProductID, VariantID: line.VariantID, Qty: line.Qty}
		}

		conf, err := svc.Execute(r.Context(), storeID, checkoutsvc.Input{
			CustomerName:    validators.SanitizeString(body.CustomerName, 200),
			CustomerEmail:   validators.SanitizeString(body.CustomerEmail, 320),
			CustomerPhone:   body.CustomerPhone,
			ShippingAddress: body.ShippingAddress,
			Lines:           lines,
			DiscountCents:   body.DiscountCents,
			PaymentMethod:   enums.PaymentMethod(body.PaymentMethod),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:         conf.Order,
			RemoteOrderID: conf.RemoteOrderID,
			GatewayKeyID:  conf.GatewayKeyID,
		})
	}
}

type verifyPaymentBody struct {
	RemoteOrderID   string `json:"remote_order_id" validate:"required"`
	RemotePaymentID string `json:"remote_payment_id" validate:"required"`
	Signature       string `json:"signature" validate:"required"`
}

// VerifyPayment settles an online payment from the gateway callback data.
func VerifyPayment(svc payments.VerificationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body verifyPaymentBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Verify(r.Context(), payments.VerifyInput{
			OrderID:         orderID,
			RemoteOrderID:   body.RemoteOrderID,
			RemotePaymentID: body.RemotePaymentID,
			Signature:       body.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderDetail returns one order with its items and refunds.
func OrderDetail(ledger orders.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := ledger.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ListOrders pages through a store's orders, newest first.
func ListOrders(ledger orders.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := parseUUIDParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := orderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := ledger.List(r.Context(), orders.ListParams{
			StoreID: storeID,
			Limit:   limit,
			Cursor:  strings.TrimSpace(r.URL.Query().Get("cursor")),
			Filters: filters,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type updateStatusBody struct {
	Status      string  `json:"status" validate:"required"`
	AWBNumber   *string `json:"awb_number,omitempty"`
	CourierName *string `json:"courier_name,omitempty"`
}

// UpdateOrderStatus moves an order along the fulfillment state machine.
// Cancellation goes through its own endpoint because it refunds and
// restocks; this handler rejects it outright.
func UpdateOrderStatus(ledger orders.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateStatusBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target := enums.FulfillmentStatus(body.Status)
		if target == enums.FulfillmentStatusCancelled {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation,
				"use the cancellation endpoint to cancel an order"))
			return
		}

		order, err := ledger.Transition(r.Context(), orders.TransitionInput{
			OrderID:     orderID,
			Target:      target,
			AWBNumber:   body.AWBNumber,
			CourierName: body.CourierName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type cancelBody struct {
	Reason *string `json:"reason,omitempty"`
}

type cancelResponse struct {
	Order        any    `json:"order"`
	RefundIssued bool   `json:"refund_issued"`
	Warnings     string `json:"warnings,omitempty"`
}

// CancelOrder runs the full cancellation sequence for an order.
func CancelOrder(orch *cancellation.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelBody
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := orch.Cancel(r.Context(), orderID, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := cancelResponse{Order: result.Order, RefundIssued: result.RefundIssued}
		if result.Warnings != nil {
			resp.Warnings = result.Warnings.Error()
		}
		responses.WriteSuccess(w, resp)
	}
}

type refundBody struct {
	AmountCents int     `json:"amount_cents" validate:"min=0"`
	Reason      *string `json:"reason,omitempty"`
}

// RefundOrder issues a refund against a captured payment. A zero or
// omitted amount refunds the remaining balance.
func RefundOrder(svc payments.RefundService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body refundBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.Refund(r.Context(), payments.RefundInput{
			OrderID:     orderID,
			AmountCents: body.AmountCents,
			Reason:      body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, refund)
	}
}

func orderFilters(r *http.Request) (orders.ListFilters, error) {
	var filters orders.ListFilters
	if raw := strings.TrimSpace(r.URL.Query().Get("payment_status")); raw != "" {
		status := enums.PaymentStatus(raw)
		if !status.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status").
				WithDetails(map[string]any{"value": raw})
		}
		filters.PaymentStatus = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("fulfillment_status")); raw != "" {
		status := enums.FulfillmentStatus(raw)
		if !status.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "unknown fulfillment status").
				WithDetails(map[string]any{"value": raw})
		}
		filters.FulfillmentStatus = &status
	}
	return filters, nil
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").
			WithDetails(map[string]any{"param": name})
	}
	return id, nil
}
