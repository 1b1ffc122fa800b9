package mercadopagowebhook

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/lojinha-backend/internal/payments"
	"github.com/angelmondragon/lojinha-backend/pkg/db/models"
	"github.com/angelmondragon/lojinha-backend/pkg/enums"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
	"github.com/angelmondragon/lojinha-backend/pkg/mercadopago"
)

type stubGateway struct {
	payment *mercadopago.Payment
	err     error
	calls   int
}

func (s *stubGateway) GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.payment, nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupReconciler(t *testing.T, gateway *stubGateway) (*Service, payments.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  payer_id TEXT NOT NULL,
  method TEXT NOT NULL DEFAULT 'pix',
  status TEXT NOT NULL DEFAULT 'pending',
  amount NUMERIC NOT NULL,
  transaction_id TEXT NOT NULL UNIQUE,
  gateway_payment_ref TEXT,
  gateway_preference_ref TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)

	ledgerSvc, err := payments.NewService(payments.ServiceParams{
		Repo:              payments.NewRepository(db),
		TransactionRunner: gormTxRunner{db: db},
	})
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Gateway: gateway,
		Ledger:  ledgerSvc,
		Logger:  logg,
	})
	require.NoError(t, err)
	return svc, ledgerSvc
}

func newPendingPayment(t *testing.T, ledger payments.Service) *models.Payment {
	t.Helper()
	created, err := ledger.Create(context.Background(), payments.CreateParams{
		OrderID: uuid.New(),
		PayerID: uuid.New(),
		Method:  enums.PaymentMethodPix,
		Amount:  decimal.RequireFromString("250.00"),
	})
	require.NoError(t, err)
	return created
}

func paymentNotification(gatewayID string) *Notification {
	n := &Notification{ID: "evt-" + gatewayID, Type: "payment"}
	n.Data.ID = gatewayID
	return n
}

func TestHandleNotificationAppliesApprovedStatus(t *testing.T) {
	gateway := &stubGateway{}
	svc, ledger := setupReconciler(t, gateway)
	payment := newPendingPayment(t, ledger)

	gateway.payment = &mercadopago.Payment{
		ID:                987,
		Status:            "approved",
		ExternalReference: payment.ID.String(),
	}

	outcome, err := svc.HandleNotification(context.Background(), paymentNotification("987"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	stored, err := ledger.Get(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, stored.Status)
	require.NotNil(t, stored.GatewayPaymentRef)
	assert.Equal(t, "987", *stored.GatewayPaymentRef)
}

func TestHandleNotificationReplayIsIdempotent(t *testing.T) {
	gateway := &stubGateway{}
	svc, ledger := setupReconciler(t, gateway)
	payment := newPendingPayment(t, ledger)

	gateway.payment = &mercadopago.Payment{
		ID:                987,
		Status:            "rejected",
		ExternalReference: payment.ID.String(),
	}

	first, err := svc.HandleNotification(context.Background(), paymentNotification("987"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, first)

	// The gateway redelivers the same notification.
	second, err := svc.HandleNotification(context.Background(), paymentNotification("987"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, second)

	stored, err := ledger.Get(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusDeclined, stored.Status)
}

func TestHandleNotificationLatePendingAfterPaidIsNoop(t *testing.T) {
	gateway := &stubGateway{}
	svc, ledger := setupReconciler(t, gateway)
	payment := newPendingPayment(t, ledger)

	gateway.payment = &mercadopago.Payment{
		ID:                987,
		Status:            "approved",
		ExternalReference: payment.ID.String(),
	}
	_, err := svc.HandleNotification(context.Background(), paymentNotification("987"))
	require.NoError(t, err)

	// A stale "pending" notification arrives after settlement.
	gateway.payment = &mercadopago.Payment{
		ID:                987,
		Status:            "pending",
		ExternalReference: payment.ID.String(),
	}
	outcome, err := svc.HandleNotification(context.Background(), paymentNotification("987"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)

	stored, err := ledger.Get(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, stored.Status)
}

func TestHandleNotificationSkipsNonPaymentTypes(t *testing.T) {
	gateway := &stubGateway{}
	svc, _ := setupReconciler(t, gateway)

	n := &Notification{ID: "evt-1", Type: "merchant_order"}
	n.Data.ID = "555"
	outcome, err := svc.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Zero(t, gateway.calls, "gateway should not be queried for skipped types")
}

func TestHandleNotificationUnresolvedReferenceIsAcked(t *testing.T) {
	gateway := &stubGateway{}
	svc, _ := setupReconciler(t, gateway)

	gateway.payment = &mercadopago.Payment{
		ID:                987,
		Status:            "approved",
		ExternalReference: "not-a-uuid",
	}
	outcome, err := svc.HandleNotification(context.Background(), paymentNotification("987"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnresolved, outcome)

	// A reference that parses but matches no row is also unresolved.
	gateway.payment = &mercadopago.Payment{
		ID:                987,
		Status:            "approved",
		ExternalReference: uuid.NewString(),
	}
	outcome, err = svc.HandleNotification(context.Background(), paymentNotification("987"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnresolved, outcome)
}

func TestHandleNotificationGatewayFailurePropagates(t *testing.T) {
	gateway := &stubGateway{err: fmt.Errorf("gateway down")}
	svc, _ := setupReconciler(t, gateway)

	_, err := svc.HandleNotification(context.Background(), paymentNotification("987"))
	require.Error(t, err)
}
