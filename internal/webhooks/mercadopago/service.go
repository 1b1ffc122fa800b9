package mercadopagowebhook

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/lojinha-backend/internal/payments"
	"github.com/angelmondragon/lojinha-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
	"github.com/angelmondragon/lojinha-backend/pkg/mercadopago"
	"github.com/angelmondragon/lojinha-backend/pkg/metrics"
)

type gatewayClient interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

type ledger interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ApplyTransition(ctx context.Context, paymentID uuid.UUID, params payments.TransitionParams) (*models.Payment, error)
}

// Outcome classifies how a notification was handled. Every outcome is an ack.
type Outcome string

const (
	// OutcomeProcessed means a new status was applied to the ledger.
	OutcomeProcessed Outcome = "processed"
	// OutcomeNoop covers replays and out-of-order notifications.
	OutcomeNoop Outcome = "noop"
	// OutcomeUnresolved means the gateway's external_reference matched no
	// local payment; acked but not applied.
	OutcomeUnresolved Outcome = "unresolved"
	// OutcomeSkipped covers notification types this service does not handle.
	OutcomeSkipped Outcome = "skipped"
)

// Notification is the (untrusted) webhook payload. Only type and the data id
// are ever read; the authoritative state always comes from the gateway API.
type Notification struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// EventID picks the stable identifier used for deduplication.
func (n *Notification) EventID() string {
	if n == nil {
		return ""
	}
	if id := strings.TrimSpace(n.ID); id != "" {
		return id
	}
	return strings.TrimSpace(n.Data.ID)
}

// ServiceParams wires the reconciler dependencies.
type ServiceParams struct {
	Gateway gatewayClient
	Ledger  ledger
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics
}

// Service reconciles the local ledger against gateway notifications.
type Service struct {
	gateway gatewayClient
	ledger  ledger
	logg    *logger.Logger
	metrics *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment ledger required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		gateway: params.Gateway,
		ledger:  params.Ledger,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// HandleNotification fetches the authoritative payment state from the gateway
// and folds it into the ledger. The payload's own status fields are never
// trusted. A non-error return means the notification is acked.
func (s *Service) HandleNotification(ctx context.Context, notification *Notification) (Outcome, error) {
	if notification == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "notification required")
	}

	if !strings.EqualFold(strings.TrimSpace(notification.Type), "payment") {
		return s.count(OutcomeSkipped), nil
	}

	gatewayPaymentID := strings.TrimSpace(notification.Data.ID)
	if gatewayPaymentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "notification data id required")
	}

	info, err := s.gateway.GetPayment(ctx, gatewayPaymentID)
	if err != nil {
		return "", err
	}

	paymentID, parseErr := uuid.Parse(strings.TrimSpace(info.ExternalReference))
	if parseErr != nil {
		ctx = s.logg.WithField(ctx, "external_reference", info.ExternalReference)
		s.logg.Warn(ctx, "gateway payment carries unresolvable external reference")
		return s.count(OutcomeUnresolved), nil
	}
	ctx = s.logg.WithPaymentID(ctx, paymentID.String())

	current, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			s.logg.Warn(ctx, "gateway payment references unknown ledger payment")
			return s.count(OutcomeUnresolved), nil
		}
		return "", err
	}

	target := payments.TranslateGatewayStatus(info.Status)
	ref := strconv.FormatInt(info.ID, 10)

	updated, err := s.ledger.ApplyTransition(ctx, paymentID, payments.TransitionParams{
		Target:            target,
		GatewayPaymentRef: &ref,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			// Late or out-of-order notification against a settled row.
			s.logg.Warn(ctx, "notification ignored by ledger state machine")
			return s.count(OutcomeNoop), nil
		}
		return "", err
	}

	if updated.Status == current.Status {
		return s.count(OutcomeNoop), nil
	}

	ctx = s.logg.WithField(ctx, "status", updated.Status.String())
	s.logg.Info(ctx, "payment reconciled from gateway notification")
	return s.count(OutcomeProcessed), nil
}

func (s *Service) count(outcome Outcome) Outcome {
	s.metrics.IncWebhookOutcome(string(outcome))
	return outcome
}
