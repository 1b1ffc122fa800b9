package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lojinha-backend/api/middleware"
	"github.com/angelmondragon/lojinha-backend/api/responses"
	"github.com/angelmondragon/lojinha-backend/api/validators"
	"github.com/angelmondragon/lojinha-backend/internal/orders"
	"github.com/angelmondragon/lojinha-backend/internal/payments"
	"github.com/angelmondragon/lojinha-backend/pkg/db/models"
	"github.com/angelmondragon/lojinha-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
)

// MyPayments lists the authenticated payer's payments, newest first.
func MyPayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		payerID, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := svc.ListByPayer(ctx, payerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentListResponse(list))
	}
}

// PaymentDetail returns one payment. Non-admins only see their own; anything
// else reads as not found.
func PaymentDetail(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		callerID, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		paymentID, err := pathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payment, err := svc.Get(ctx, paymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if payment.PayerID != callerID && !isAdmin(r) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"))
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(*payment))
	}
}

// PaymentsByOrder lists an order's payment attempts, scoped to the order's
// owner.
func PaymentsByOrder(svc payments.Service, ordersRepo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || ordersRepo == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		callerID, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := ordersRepo.FindByID(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order"))
			return
		}
		if order == nil || (order.UserID != callerID && !isAdmin(r)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		list, err := svc.ListByOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentListResponse(list))
	}
}

// AdminUpdatePaymentStatus forces a ledger transition. Illegal moves come back
// as state conflicts from the ledger, not as silent overwrites.
func AdminUpdatePaymentStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		paymentID, err := pathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload updatePaymentStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		target, err := enums.ParsePaymentStatus(payload.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status"))
			return
		}

		updated, err := svc.ApplyTransition(ctx, paymentID, payments.TransitionParams{Target: target})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(*updated))
	}
}

type updatePaymentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type paymentResponse struct {
	PaymentID            uuid.UUID       `json:"payment_id"`
	OrderID              uuid.UUID       `json:"order_id"`
	PayerID              uuid.UUID       `json:"payer_id"`
	Method               string          `json:"method"`
	Status               string          `json:"status"`
	Amount               decimal.Decimal `json:"amount"`
	TransactionID        string          `json:"transaction_id"`
	GatewayPaymentRef    *string         `json:"gateway_payment_ref,omitempty"`
	GatewayPreferenceRef *string         `json:"gateway_preference_ref,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func newPaymentResponse(payment models.Payment) paymentResponse {
	return paymentResponse{
		PaymentID:            payment.ID,
		OrderID:              payment.OrderID,
		PayerID:              payment.PayerID,
		Method:               payment.Method.String(),
		Status:               payment.Status.String(),
		Amount:               payment.Amount,
		TransactionID:        payment.TransactionID,
		GatewayPaymentRef:    payment.GatewayPaymentRef,
		GatewayPreferenceRef: payment.GatewayPreferenceRef,
		CreatedAt:            payment.CreatedAt,
		UpdatedAt:            payment.UpdatedAt,
	}
}

func newPaymentListResponse(list []models.Payment) []paymentResponse {
	out := make([]paymentResponse, 0, len(list))
	for _, payment := range list {
		out = append(out, newPaymentResponse(payment))
	}
	return out
}

func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}

func isAdmin(r *http.Request) bool {
	return middleware.RoleFromContext(r.Context()) == "admin"
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").
			WithDetails(map[string]any{"field": key})
	}
	return id, nil
}
