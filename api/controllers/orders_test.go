package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	checkoutsvc "github.com/craftline/storefront-backend/internal/checkout"
	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubCheckout struct {
	confirmation *checkoutsvc.Confirmation
	err          error
	lastStoreID  uuid.UUID
	lastInput    checkoutsvc.Input
	calls        int
}

func (s *stubCheckout) Execute(_ context.Context, storeID uuid.UUID, input checkoutsvc.Input) (*checkoutsvc.Confirmation, error) {
	s.calls++
	s.lastStoreID = storeID
	s.lastInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.confirmation, nil
}

type stubLedger struct {
	order       *models.Order
	list        *orders.ListResult
	err         error
	transitions int
}

func (s *stubLedger) Get(context.Context, uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubLedger) List(context.Context, orders.ListParams) (*orders.ListResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubLedger) Transition(context.Context, orders.TransitionInput) (*models.Order, error) {
	s.transitions++
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func TestCheckoutCreatesOrder(t *testing.T) {
	order := &models.Order{ID: uuid.New(), OrderNumber: "ORD-20260830-ABCDEF"}
	svc := &stubCheckout{confirmation: &checkoutsvc.Confirmation{
		Order:         order,
		RemoteOrderID: "order_remote_9",
		GatewayKeyID:  "key_platform",
	}}

	r := chi.NewRouter()
	r.Post("/stores/{storeId}/checkout", Checkout(svc, testLogger()))

	storeID := uuid.New()
	body := `{
		"customer_name": "Asha Rao",
		"customer_email": "asha@example.com",
		"shipping_address": {"line1": "12 Lake Rd", "city": "Pune", "state": "MH", "postal_code": "411001"},
		"lines": [{"product_id": "` + uuid.NewString() + `", "qty": 2}],
		"payment_method": "online"
	}`
	req := httptest.NewRequest(http.MethodPost, "/stores/"+storeID.String()+"/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastStoreID != storeID {
		t.Errorf("expected store id to flow through, got %s", svc.lastStoreID)
	}
	if svc.lastInput.PaymentMethod != enums.PaymentMethodOnline {
		t.Errorf("expected online payment method, got %s", svc.lastInput.PaymentMethod)
	}
	if len(svc.lastInput.Lines) != 1 || svc.lastInput.Lines[0].Qty != 2 {
		t.Errorf("expected one line with qty 2, got %+v", svc.lastInput.Lines)
	}
	var payload struct {
		Data struct {
			RemoteOrderID string `json:"remote_order_id"`
			GatewayKeyID  string `json:"gateway_key_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.RemoteOrderID != "order_remote_9" || payload.Data.GatewayKeyID != "key_platform" {
		t.Errorf("expected gateway handoff fields, got %+v", payload.Data)
	}
}

func TestCheckoutRejectsBadStoreID(t *testing.T) {
	svc := &stubCheckout{}
	r := chi.NewRouter()
	r.Post("/stores/{storeId}/checkout", Checkout(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/stores/not-a-uuid/checkout", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Errorf("service must not run for an invalid store id")
	}
}

func TestCheckoutRejectsUnknownField(t *testing.T) {
	svc := &stubCheckout{}
	r := chi.NewRouter()
	r.Post("/stores/{storeId}/checkout", Checkout(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/stores/"+uuid.NewString()+"/checkout",
		strings.NewReader(`{"surprise": true}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeValidation) {
		t.Errorf("expected validation code, got %q", code)
	}
}

func TestUpdateOrderStatusRejectsCancelled(t *testing.T) {
	ledger := &stubLedger{}
	r := chi.NewRouter()
	r.Patch("/orders/{orderId}/status", UpdateOrderStatus(ledger, testLogger()))

	req := httptest.NewRequest(http.MethodPatch, "/orders/"+uuid.NewString()+"/status",
		strings.NewReader(`{"status": "cancelled"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if ledger.transitions != 0 {
		t.Errorf("transition must not run for cancelled target")
	}
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	ledger := &stubLedger{order: &models.Order{
		ID:                uuid.New(),
		FulfillmentStatus: enums.FulfillmentStatusPacked,
	}}
	r := chi.NewRouter()
	r.Patch("/orders/{orderId}/status", UpdateOrderStatus(ledger, testLogger()))

	req := httptest.NewRequest(http.MethodPatch, "/orders/"+uuid.NewString()+"/status",
		strings.NewReader(`{"status": "packed"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ledger.transitions != 1 {
		t.Errorf("expected one transition call, got %d", ledger.transitions)
	}
}

func TestOrderDetailNotFound(t *testing.T) {
	ledger := &stubLedger{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	r := chi.NewRouter()
	r.Get("/orders/{orderId}", OrderDetail(ledger, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeNotFound) {
		t.Errorf("expected not found code, got %q", code)
	}
}

func TestListOrdersRejectsUnknownStatusFilter(t *testing.T) {
	ledger := &stubLedger{list: &orders.ListResult{}}
	r := chi.NewRouter()
	r.Get("/stores/{storeId}/orders", ListOrders(ledger, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/stores/"+uuid.NewString()+"/orders?payment_status=settled", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeValidation) {
		t.Errorf("expected validation code, got %q", code)
	}
}
