package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/lojinha-backend/internal/orders"
	"github.com/angelmondragon/lojinha-backend/internal/payments"
	"github.com/angelmondragon/lojinha-backend/pkg/config"
	"github.com/angelmondragon/lojinha-backend/pkg/db"
	"github.com/angelmondragon/lojinha-backend/pkg/db/models"
	"github.com/angelmondragon/lojinha-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
	"github.com/angelmondragon/lojinha-backend/pkg/mercadopago"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayClient interface {
	CreatePreference(ctx context.Context, params mercadopago.PreferenceCreateParams) (*mercadopago.Preference, error)
	PublicKey() string
	Sandbox() bool
}

type ledger interface {
	ApplyTransition(ctx context.Context, paymentID uuid.UUID, params payments.TransitionParams) (*models.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

// StartResult is what the storefront needs to send the payer to the gateway.
type StartResult struct {
	PaymentID          uuid.UUID
	TransactionID      string
	PreferenceID       string
	CheckoutURL        string
	SandboxCheckoutURL string
	PublicKey          string
	Amount             decimal.Decimal
	Status             enums.PaymentStatus
}

// ReturnParams carries the query values the gateway appends on browser return.
type ReturnParams struct {
	Kind              string
	ExternalReference string
	CollectionID      string
	CollectionStatus  string
}

// ReturnResult is always rendered with HTTP 200; the payer's browser is not a
// channel we report infrastructure errors on.
type ReturnResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	PaymentID    string `json:"payment_id,omitempty"`
	CollectionID string `json:"collection_id,omitempty"`
	Status       string `json:"status,omitempty"`
}

// Service orchestrates checkout against the ledger and the gateway.
type Service interface {
	Start(ctx context.Context, orderID, payerID uuid.UUID, method enums.PaymentMethod) (*StartResult, error)
	HandleReturn(ctx context.Context, params ReturnParams) ReturnResult
}

// ServiceParams wires the orchestrator dependencies.
type ServiceParams struct {
	OrdersRepo        orders.Repository
	PaymentsRepo      payments.Repository
	Ledger            ledger
	Gateway           gatewayClient
	TransactionRunner txRunner
	Config            config.CheckoutConfig
	Logger            *logger.Logger
}

type service struct {
	ordersRepo   orders.Repository
	paymentsRepo payments.Repository
	ledger       ledger
	gateway      gatewayClient
	tx           txRunner
	cfg          config.CheckoutConfig
	logg         *logger.Logger
}

// NewService builds the checkout orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.PaymentsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment ledger required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		ordersRepo:   params.OrdersRepo,
		paymentsRepo: params.PaymentsRepo,
		ledger:       params.Ledger,
		gateway:      params.Gateway,
		tx:           params.TransactionRunner,
		cfg:          params.Config,
		logg:         params.Logger,
	}, nil
}

func (s *service) Start(ctx context.Context, orderID, payerID uuid.UUID, method enums.PaymentMethod) (*StartResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if payerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer id required")
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}

	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order == nil || order.UserID != payerID {
		// Not distinguishing "missing" from "not yours".
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.Total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	// Find-or-create the pending attempt under a lock on the order row so a
	// double-submitted checkout lands on a single payment.
	var payment *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.ordersRepo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock order")
		}
		if locked == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		repo := s.paymentsRepo.WithTx(tx)
		existing, err := repo.FindPendingByOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find pending payment")
		}
		if existing != nil {
			payment = existing
			return nil
		}

		pending, err := payments.NewPending(payments.CreateParams{
			OrderID: orderID,
			PayerID: payerID,
			Method:  method,
			Amount:  order.Total,
		})
		if err != nil {
			return err
		}
		created, err := repo.Create(ctx, pending)
		if err != nil {
			if db.IsUniqueViolation(err, "payments_transaction_id_key") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transaction id already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment")
		}
		payment = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithPaymentID(ctx, payment.ID.String())

	// Gateway call happens outside the transaction; a lock must never wait on
	// the network.
	pref, err := s.gateway.CreatePreference(ctx, s.preferenceParams(order, payment))
	if err != nil {
		return nil, err
	}

	prefID := pref.ID
	updated, err := s.ledger.ApplyTransition(ctx, payment.ID, payments.TransitionParams{
		Target:               payment.Status,
		GatewayPreferenceRef: &prefID,
	})
	if err != nil {
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			return nil, err
		}
		// The reconciler finalized the row while the preference call was in
		// flight. The checkout still stands; report the settled state.
		updated, err = s.ledger.Get(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
	}

	result := &StartResult{
		PaymentID:     updated.ID,
		TransactionID: updated.TransactionID,
		PreferenceID:  pref.ID,
		CheckoutURL:   pref.CheckoutURL(false),
		PublicKey:     s.gateway.PublicKey(),
		Amount:        updated.Amount,
		Status:        updated.Status,
	}
	if s.gateway.Sandbox() {
		result.SandboxCheckoutURL = pref.CheckoutURL(true)
	}
	return result, nil
}

func (s *service) preferenceParams(order *models.Order, payment *models.Payment) mercadopago.PreferenceCreateParams {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	params := mercadopago.PreferenceCreateParams{
		Title:             fmt.Sprintf("Pedido %s", shortID(order.ID)),
		Quantity:          1,
		UnitPrice:         payment.Amount,
		Currency:          s.cfg.Currency,
		ExternalReference: payment.ID.String(),
		NotificationURL:   base + "/api/v1/webhooks/mercadopago",
		BackURLs: mercadopago.BackURLs{
			Success: base + "/api/v1/payments/return/success",
			Failure: base + "/api/v1/payments/return/failure",
			Pending: base + "/api/v1/payments/return/pending",
		},
	}
	if order.User != nil {
		params.PayerName = order.User.Name
		params.PayerEmail = order.User.Email
	}
	return params
}

// HandleReturn mirrors the webhook on a best-effort basis. The browser
// redirect is advisory: the reconciler remains the source of truth, so every
// outcome here is a 200 and a finalized row is never clobbered.
func (s *service) HandleReturn(ctx context.Context, params ReturnParams) ReturnResult {
	paymentID, err := uuid.Parse(strings.TrimSpace(params.ExternalReference))
	if err != nil {
		return ReturnResult{
			Success:      false,
			Message:      "payment reference not recognized",
			CollectionID: params.CollectionID,
		}
	}
	ctx = s.logg.WithPaymentID(ctx, paymentID.String())

	target, ok := s.returnTarget(params)
	if !ok {
		payment, err := s.ledger.Get(ctx, paymentID)
		if err != nil {
			return ReturnResult{
				Success:      false,
				Message:      "payment reference not recognized",
				CollectionID: params.CollectionID,
			}
		}
		return s.resultFor(payment, params.CollectionID)
	}

	transition := payments.TransitionParams{Target: target}
	if ref := strings.TrimSpace(params.CollectionID); ref != "" {
		transition.GatewayPaymentRef = &ref
	}

	payment, err := s.ledger.ApplyTransition(ctx, paymentID, transition)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			// Out-of-order arrival; keep whatever the ledger already settled on.
			if current, getErr := s.ledger.Get(ctx, paymentID); getErr == nil {
				return s.resultFor(current, params.CollectionID)
			}
		}
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return ReturnResult{
				Success:      false,
				Message:      "payment reference not recognized",
				CollectionID: params.CollectionID,
			}
		}
		s.logg.Error(ctx, "handle gateway return", err)
		return ReturnResult{
			Success:      false,
			Message:      "payment could not be updated",
			PaymentID:    paymentID.String(),
			CollectionID: params.CollectionID,
		}
	}
	return s.resultFor(payment, params.CollectionID)
}

func (s *service) returnTarget(params ReturnParams) (enums.PaymentStatus, bool) {
	if raw := strings.TrimSpace(params.CollectionStatus); raw != "" {
		status := payments.TranslateGatewayStatus(raw)
		if status == enums.PaymentStatusPending {
			return "", false
		}
		return status, true
	}
	switch strings.ToLower(strings.TrimSpace(params.Kind)) {
	case "success":
		return enums.PaymentStatusPaid, true
	case "failure":
		return enums.PaymentStatusDeclined, true
	default:
		return "", false
	}
}

func (s *service) resultFor(payment *models.Payment, collectionID string) ReturnResult {
	result := ReturnResult{
		PaymentID:    payment.ID.String(),
		CollectionID: collectionID,
		Status:       payment.Status.String(),
	}
	switch payment.Status {
	case enums.PaymentStatusPaid:
		result.Success = true
		result.Message = "payment approved"
	case enums.PaymentStatusPending:
		result.Message = "payment pending confirmation"
	case enums.PaymentStatusRefunded:
		result.Message = "payment refunded"
	default:
		result.Message = "payment was not completed"
	}
	return result
}

func shortID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
