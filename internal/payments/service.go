package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/lojinha-backend/pkg/db"
	"github.com/angelmondragon/lojinha-backend/pkg/db/models"
	"github.com/angelmondragon/lojinha-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
	"github.com/angelmondragon/lojinha-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateParams captures the inputs for opening a payment attempt.
type CreateParams struct {
	OrderID uuid.UUID
	PayerID uuid.UUID
	Method  enums.PaymentMethod
	Amount  decimal.Decimal
}

// TransitionParams captures a requested status change against the ledger.
// Refs ride along so reconciliation can attach gateway identifiers in the
// same atomic write.
type TransitionParams struct {
	Target               enums.PaymentStatus
	GatewayPaymentRef    *string
	GatewayPreferenceRef *string
}

// Service is the payment ledger: the only writer of payment rows.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Payment, error)
	ApplyTransition(ctx context.Context, paymentID uuid.UUID, params TransitionParams) (*models.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	ListByPayer(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error)
}

// ServiceParams wires the ledger dependencies.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Metrics           *metrics.PaymentMetrics
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.PaymentMetrics
}

// NewService builds the payment ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.TransactionRunner,
		metrics: params.Metrics,
	}, nil
}

// NewPending builds an unsaved pending payment row, validating the inputs.
func NewPending(params CreateParams) (*models.Payment, error) {
	if params.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if params.PayerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer id required")
	}
	if !params.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", params.Method))
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return &models.Payment{
		ID:            uuid.New(),
		OrderID:       params.OrderID,
		PayerID:       params.PayerID,
		Method:        params.Method,
		Status:        enums.PaymentStatusPending,
		Amount:        params.Amount,
		TransactionID: NewTransactionID(params.OrderID, time.Now().UTC()),
	}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Payment, error) {
	payment, err := NewPending(params)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, payment)
	if err != nil {
		if db.IsUniqueViolation(err, "payments_transaction_id_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transaction id already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment")
	}
	return created, nil
}

// ApplyTransition is the single write path for payment status. It locks the
// row, re-checks the state machine against the current status, and only then
// mutates. A same-status request is an idempotent no-op.
func (s *service) ApplyTransition(ctx context.Context, paymentID uuid.UUID, params TransitionParams) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !params.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", params.Target))
	}

	var result *models.Payment
	applied := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment for update")
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}

		dirty := false
		if ref := normalizeRef(params.GatewayPaymentRef); ref != nil && (payment.GatewayPaymentRef == nil || *payment.GatewayPaymentRef != *ref) {
			payment.GatewayPaymentRef = ref
			dirty = true
		}
		if ref := normalizeRef(params.GatewayPreferenceRef); ref != nil && (payment.GatewayPreferenceRef == nil || *payment.GatewayPreferenceRef != *ref) {
			payment.GatewayPreferenceRef = ref
			dirty = true
		}

		switch {
		case payment.Status == params.Target:
			// Replayed notification. Keep the row as is.
		case payment.Status.CanTransitionTo(params.Target):
			payment.Status = params.Target
			dirty = true
			applied = true
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "state transition disallowed").
				WithDetails(map[string]any{
					"from": payment.Status.String(),
					"to":   params.Target.String(),
				})
		}

		if dirty {
			if err := repo.Save(ctx, payment); err != nil {
				if typed := pkgerrors.As(err); typed != nil {
					return err
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment transition")
			}
		}
		result = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	if applied {
		s.metrics.IncTransition(result.Status.String())
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	list, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list order payments")
	}
	return list, nil
}

func (s *service) ListByPayer(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error) {
	if payerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer id required")
	}
	list, err := s.repo.FindByPayer(ctx, payerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payer payments")
	}
	return list, nil
}

// NewTransactionID builds the human-traceable ledger reference:
//
//	PAY_<order prefix>_<unix ts>_<random suffix>
func NewTransactionID(orderID uuid.UUID, now time.Time) string {
	orderPart := strings.ReplaceAll(orderID.String(), "-", "")[:8]
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("PAY_%s_%d_%s", orderPart, now.Unix(), suffix)
}

func normalizeRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*ref)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
