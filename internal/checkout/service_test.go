package checkout

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/internal/cart"
	"github.com/craftline/storefront-backend/internal/catalog"
	"github.com/craftline/storefront-backend/internal/inventory"
	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/internal/payments"
	"github.com/craftline/storefront-backend/pkg/config"
	"github.com/craftline/storefront-backend/pkg/db/dbtest"
	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
	"github.com/craftline/storefront-backend/pkg/types"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type stubGateway struct {
	remoteOrderID string
	err           error
	calls         int
	lastCreds     payments.Credentials
	lastRequest   payments.RemoteOrderRequest
}

func (g *stubGateway) CreateRemoteOrder(ctx context.Context, creds payments.Credentials, req payments.RemoteOrderRequest) (string, error) {
	g.calls++
	g.lastCreds = creds
	g.lastRequest = req
	if g.err != nil {
		return "", g.err
	}
	return g.remoteOrderID, nil
}

func (g *stubGateway) Refund(ctx context.Context, creds payments.Credentials, req payments.RefundRequest) (string, error) {
	return "", errors.New("not implemented")
}

type recordingConfirmNotifier struct {
	confirmed int
}

func (r *recordingConfirmNotifier) NotifyOrderConfirmed(ctx context.Context, order *models.Order) {
	r.confirmed++
}

type recordingDispatcher struct {
	dispatched []uuid.UUID
}

func (r *recordingDispatcher) Dispatch(orderID uuid.UUID) {
	r.dispatched = append(r.dispatched, orderID)
}

func checkoutTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
}

type checkoutFixture struct {
	db         *gorm.DB
	svc        Service
	gateway    *stubGateway
	notifier   *recordingConfirmNotifier
	dispatcher *recordingDispatcher
	storeID    uuid.UUID
	productID  uuid.UUID
}

func newCheckoutFixture(t *testing.T, gateway *stubGateway) *checkoutFixture {
	t.Helper()
	db := dbtest.Open(t)

	storeID := uuid.New()
	store := models.Store{ID: storeID, Name: "Craftline Goods", Email: "ops@craftline.test", FlatShippingFee: 5000}
	if err := db.Create(&store).Error; err != nil {
		t.Fatalf("seed store: %v", err)
	}

	productID := uuid.New()
	product := models.Product{ID: productID, StoreID: storeID, Title: "Brass Lamp", PriceCents: 10000, Status: enums.ProductStatusActive, TrackStock: true}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	stock := models.InventoryItem{ProductID: productID, VariantID: uuid.Nil, AvailableQty: 10}
	if err := db.Create(&stock).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	validator, err := cart.NewValidator(catalog.NewReader(db))
	if err != nil {
		t.Fatalf("build validator: %v", err)
	}
	resolver, err := payments.NewCredentialResolver(config.GatewayConfig{
		KeyID: "key_platform", KeySecret: "secret_platform", CredentialKey: "0123456789abcdef0123456789abcdef",
	})
	if err != nil {
		t.Fatalf("build resolver: %v", err)
	}

	notifier := &recordingConfirmNotifier{}
	dispatcher := &recordingDispatcher{}
	svc, err := NewService(
		gormTxRunner{db: db}, validator, orders.NewRepository(db),
		inventory.NewManager(), catalog.NewReader(db),
		gateway, resolver, notifier, dispatcher, checkoutTestLogger(),
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	return &checkoutFixture{
		db:         db,
		svc:        svc,
		gateway:    gateway,
		notifier:   notifier,
		dispatcher: dispatcher,
		storeID:    storeID,
		productID:  productID,
	}
}

func (f *checkoutFixture) input(method enums.PaymentMethod, qty int) Input {
	return Input{
		CustomerName:  "Asha Rao",
		CustomerEmail: "asha@example.test",
		ShippingAddress: types.Address{
			Line1: "12 MG Road", City: "Bengaluru", State: "KA", PostalCode: "560001",
		},
		Lines:         []cart.Line{{ProductID: f.productID, Qty: qty}},
		PaymentMethod: method,
	}
}

func (f *checkoutFixture) stock(t *testing.T) models.InventoryItem {
	t.Helper()
	var item models.InventoryItem
	if err := f.db.First(&item, "product_id = ?", f.productID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return item
}

func TestExecuteOnlineOpensGatewayOrder(t *testing.T) {
	gateway := &stubGateway{remoteOrderID: "ord_remote_9"}
	f := newCheckoutFixture(t, gateway)

	conf, err := f.svc.Execute(context.Background(), f.storeID, f.input(enums.PaymentMethodOnline, 2))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if conf.RemoteOrderID != "ord_remote_9" {
		t.Errorf("remote order id = %q", conf.RemoteOrderID)
	}
	if conf.GatewayKeyID != "key_platform" {
		t.Errorf("gateway key id = %q", conf.GatewayKeyID)
	}

	order := conf.Order
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Errorf("payment status = %s, want pending", order.PaymentStatus)
	}
	if order.RemoteOrderID == nil || *order.RemoteOrderID != "ord_remote_9" {
		t.Errorf("stored remote order id = %v", order.RemoteOrderID)
	}
	if matched, _ := regexp.MatchString(`^ORD-\d{8}-[23456789A-HJKMNP-Z]{6}$`, order.OrderNumber); !matched {
		t.Errorf("order number = %q", order.OrderNumber)
	}

	// 2 x 10000 + 5000 flat shipping.
	if order.TotalCents != 25000 {
		t.Errorf("total = %d, want 25000", order.TotalCents)
	}
	if gateway.lastRequest.AmountCents != 25000 {
		t.Errorf("gateway amount = %d", gateway.lastRequest.AmountCents)
	}
	if gateway.lastRequest.Receipt != order.OrderNumber {
		t.Errorf("gateway receipt = %q", gateway.lastRequest.Receipt)
	}

	if len(order.Items) != 1 || order.Items[0].UnitPriceCents != 10000 || order.Items[0].Qty != 2 {
		t.Errorf("items = %+v", order.Items)
	}

	stock := f.stock(t)
	if stock.AvailableQty != 8 || stock.ReservedQty != 2 {
		t.Errorf("stock = %+v, want 8 available 2 reserved", stock)
	}
	var reservation models.StockReservation
	if err := f.db.First(&reservation, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if reservation.Status != enums.ReservationStatusHeld {
		t.Errorf("reservation status = %s, want held", reservation.Status)
	}

	// Online orders confirm on payment verification, not at checkout.
	if f.notifier.confirmed != 0 {
		t.Errorf("confirmations = %d, want 0", f.notifier.confirmed)
	}
	if len(f.dispatcher.dispatched) != 0 {
		t.Errorf("dispatches = %v, want none", f.dispatcher.dispatched)
	}
}

func TestExecuteCashOnDeliveryConfirmsImmediately(t *testing.T) {
	gateway := &stubGateway{}
	f := newCheckoutFixture(t, gateway)

	conf, err := f.svc.Execute(context.Background(), f.storeID, f.input(enums.PaymentMethodCashOnDelivery, 3))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if gateway.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", gateway.calls)
	}
	if conf.RemoteOrderID != "" {
		t.Errorf("remote order id = %q, want empty", conf.RemoteOrderID)
	}

	stock := f.stock(t)
	if stock.AvailableQty != 7 || stock.ReservedQty != 0 {
		t.Errorf("stock = %+v, want committed 7/0", stock)
	}
	var reservation models.StockReservation
	if err := f.db.First(&reservation, "order_id = ?", conf.Order.ID).Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if reservation.Status != enums.ReservationStatusCommitted {
		t.Errorf("reservation status = %s, want committed", reservation.Status)
	}

	if f.notifier.confirmed != 1 {
		t.Errorf("confirmations = %d, want 1", f.notifier.confirmed)
	}
	if len(f.dispatcher.dispatched) != 1 || f.dispatcher.dispatched[0] != conf.Order.ID {
		t.Errorf("dispatches = %v", f.dispatcher.dispatched)
	}
}

func TestExecuteGatewayFailureRollsBackEverything(t *testing.T) {
	gateway := &stubGateway{err: pkgerrors.New(pkgerrors.CodePaymentGateway, "gateway unavailable")}
	f := newCheckoutFixture(t, gateway)

	_, err := f.svc.Execute(context.Background(), f.storeID, f.input(enums.PaymentMethodOnline, 2))
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentGateway) {
		t.Fatalf("err = %v, want payment gateway code", err)
	}

	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Errorf("orders = %d, want 0", orderCount)
	}
	stock := f.stock(t)
	if stock.AvailableQty != 10 || stock.ReservedQty != 0 {
		t.Errorf("stock = %+v, want untouched", stock)
	}
}

func TestExecuteInsufficientStockRejected(t *testing.T) {
	f := newCheckoutFixture(t, &stubGateway{})

	_, err := f.svc.Execute(context.Background(), f.storeID, f.input(enums.PaymentMethodOnline, 11))
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("err = %v, want validation code", err)
	}
	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Errorf("orders = %d, want 0", orderCount)
	}
}

func TestExecuteUntrackedProductSkipsReservation(t *testing.T) {
	f := newCheckoutFixture(t, &stubGateway{})

	untrackedID := uuid.New()
	untracked := models.Product{ID: untrackedID, StoreID: f.storeID, Title: "Gift Note", PriceCents: 500, Status: enums.ProductStatusActive, TrackStock: false}
	if err := f.db.Create(&untracked).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	input := f.input(enums.PaymentMethodCashOnDelivery, 1)
	input.Lines = []cart.Line{{ProductID: untrackedID, Qty: 2}}

	conf, err := f.svc.Execute(context.Background(), f.storeID, input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var count int64
	if err := f.db.Model(&models.StockReservation{}).Where("order_id = ?", conf.Order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 0 {
		t.Errorf("reservations = %d, want 0", count)
	}
}

func TestExecuteValidatesInput(t *testing.T) {
	f := newCheckoutFixture(t, &stubGateway{})
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing name", func(in *Input) { in.CustomerName = " " }},
		{"missing email", func(in *Input) { in.CustomerEmail = "" }},
		{"empty cart", func(in *Input) { in.Lines = nil }},
		{"bad method", func(in *Input) { in.PaymentMethod = enums.PaymentMethod("wire") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := f.input(enums.PaymentMethodOnline, 1)
			tc.mutate(&input)
			_, err := f.svc.Execute(ctx, f.storeID, input)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("err = %v, want validation code", err)
			}
		})
	}
}

func TestExecuteUnknownStore(t *testing.T) {
	f := newCheckoutFixture(t, &stubGateway{})

	input := f.input(enums.PaymentMethodOnline, 1)
	_, err := f.svc.Execute(context.Background(), uuid.New(), input)
	if err == nil {
		t.Fatal("expected error for unknown store")
	}
}
