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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/lojinha-backend/api/middleware"
	"github.com/angelmondragon/lojinha-backend/internal/orders"
	"github.com/angelmondragon/lojinha-backend/internal/payments"
	"github.com/angelmondragon/lojinha-backend/pkg/db/models"
	"github.com/angelmondragon/lojinha-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
)

type testPaymentsService struct {
	createFn          func(ctx context.Context, params payments.CreateParams) (*models.Payment, error)
	applyTransitionFn func(ctx context.Context, paymentID uuid.UUID, params payments.TransitionParams) (*models.Payment, error)
	getFn             func(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	listByOrderFn     func(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	listByPayerFn     func(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error)
}

func (s *testPaymentsService) Create(ctx context.Context, params payments.CreateParams) (*models.Payment, error) {
	if s.createFn != nil {
		return s.createFn(ctx, params)
	}
	return nil, nil
}

func (s *testPaymentsService) ApplyTransition(ctx context.Context, paymentID uuid.UUID, params payments.TransitionParams) (*models.Payment, error) {
	if s.applyTransitionFn != nil {
		return s.applyTransitionFn(ctx, paymentID, params)
	}
	return nil, nil
}

func (s *testPaymentsService) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

func (s *testPaymentsService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	if s.listByOrderFn != nil {
		return s.listByOrderFn(ctx, orderID)
	}
	return nil, nil
}

func (s *testPaymentsService) ListByPayer(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error) {
	if s.listByPayerFn != nil {
		return s.listByPayerFn(ctx, payerID)
	}
	return nil, nil
}

type testOrdersRepo struct {
	order *models.Order
}

func (s *testOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *testOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order != nil && s.order.ID == id {
		return s.order, nil
	}
	return nil, nil
}

func (s *testOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func samplePayment(payerID uuid.UUID) *models.Payment {
	return &models.Payment{
		ID:            uuid.New(),
		OrderID:       uuid.New(),
		PayerID:       payerID,
		Method:        enums.PaymentMethodPix,
		Status:        enums.PaymentStatusPending,
		Amount:        decimal.RequireFromString("250.00"),
		TransactionID: "PAY_abc",
	}
}

func asUser(req *http.Request, userID uuid.UUID, role string) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	if role != "" {
		ctx = middleware.WithRole(ctx, role)
	}
	return req.WithContext(ctx)
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestMyPaymentsReturnsPayerList(t *testing.T) {
	payerID := uuid.New()
	svc := &testPaymentsService{
		listByPayerFn: func(ctx context.Context, pid uuid.UUID) ([]models.Payment, error) {
			if pid != payerID {
				t.Fatalf("unexpected payer %s", pid)
			}
			return []models.Payment{*samplePayment(payerID)}, nil
		},
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil), payerID, "")
	resp := httptest.NewRecorder()
	MyPayments(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("expected 1 payment got %d", len(envelope.Data))
	}
	if envelope.Data[0]["status"] != "pending" {
		t.Fatalf("unexpected status %v", envelope.Data[0]["status"])
	}
}

func TestMyPaymentsRequiresAuthentication(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	resp := httptest.NewRecorder()
	MyPayments(&testPaymentsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestPaymentDetailOwnerCanRead(t *testing.T) {
	payerID := uuid.New()
	payment := samplePayment(payerID)
	svc := &testPaymentsService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
			return payment, nil
		},
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+payment.ID.String(), nil), payerID, "")
	req = addRouteParam(req, "paymentId", payment.ID.String())
	resp := httptest.NewRecorder()
	PaymentDetail(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestPaymentDetailHidesForeignPayment(t *testing.T) {
	payment := samplePayment(uuid.New())
	svc := &testPaymentsService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
			return payment, nil
		},
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+payment.ID.String(), nil), uuid.New(), "")
	req = addRouteParam(req, "paymentId", payment.ID.String())
	resp := httptest.NewRecorder()
	PaymentDetail(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestPaymentDetailAdminCanReadAny(t *testing.T) {
	payment := samplePayment(uuid.New())
	svc := &testPaymentsService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
			return payment, nil
		},
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+payment.ID.String(), nil), uuid.New(), "admin")
	req = addRouteParam(req, "paymentId", payment.ID.String())
	resp := httptest.NewRecorder()
	PaymentDetail(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestPaymentDetailInvalidID(t *testing.T) {
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/payments/bogus", nil), uuid.New(), "")
	req = addRouteParam(req, "paymentId", "bogus")
	resp := httptest.NewRecorder()
	PaymentDetail(&testPaymentsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPaymentsByOrderScopedToOwner(t *testing.T) {
	ownerID := uuid.New()
	order := &models.Order{ID: uuid.New(), UserID: ownerID, Total: decimal.RequireFromString("100.00")}
	svc := &testPaymentsService{
		listByOrderFn: func(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
			return []models.Payment{*samplePayment(ownerID)}, nil
		},
	}
	repo := &testOrdersRepo{order: order}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/payments/by-order/"+order.ID.String(), nil), ownerID, "")
	req = addRouteParam(req, "orderId", order.ID.String())
	resp := httptest.NewRecorder()
	PaymentsByOrder(svc, repo, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}

	// Another user sees not found, not forbidden.
	req = asUser(httptest.NewRequest(http.MethodGet, "/api/v1/payments/by-order/"+order.ID.String(), nil), uuid.New(), "")
	req = addRouteParam(req, "orderId", order.ID.String())
	resp = httptest.NewRecorder()
	PaymentsByOrder(svc, repo, testLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestAdminUpdatePaymentStatusAppliesTransition(t *testing.T) {
	payment := samplePayment(uuid.New())
	svc := &testPaymentsService{
		applyTransitionFn: func(ctx context.Context, paymentID uuid.UUID, params payments.TransitionParams) (*models.Payment, error) {
			if params.Target != enums.PaymentStatusCancelled {
				t.Fatalf("unexpected target %s", params.Target)
			}
			updated := *payment
			updated.Status = enums.PaymentStatusCancelled
			return &updated, nil
		},
	}

	body := strings.NewReader(`{"status":"cancelled"}`)
	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/admin/v1/payments/"+payment.ID.String()+"/status", body), uuid.New(), "admin")
	req = addRouteParam(req, "paymentId", payment.ID.String())
	resp := httptest.NewRecorder()
	AdminUpdatePaymentStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["status"] != "cancelled" {
		t.Fatalf("unexpected status %v", envelope.Data["status"])
	}
}

func TestAdminUpdatePaymentStatusRejectsUnknownStatus(t *testing.T) {
	body := strings.NewReader(`{"status":"settled"}`)
	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/admin/v1/payments/"+uuid.NewString()+"/status", body), uuid.New(), "admin")
	req = addRouteParam(req, "paymentId", uuid.NewString())
	resp := httptest.NewRecorder()
	AdminUpdatePaymentStatus(&testPaymentsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminUpdatePaymentStatusSurfacesStateConflict(t *testing.T) {
	svc := &testPaymentsService{
		applyTransitionFn: func(ctx context.Context, paymentID uuid.UUID, params payments.TransitionParams) (*models.Payment, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "state transition disallowed")
		},
	}

	body := strings.NewReader(`{"status":"paid"}`)
	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/admin/v1/payments/"+uuid.NewString()+"/status", body), uuid.New(), "admin")
	req = addRouteParam(req, "paymentId", uuid.NewString())
	resp := httptest.NewRecorder()
	AdminUpdatePaymentStatus(svc, testLogger())(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}
