package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lojinha-backend/api/responses"
	"github.com/angelmondragon/lojinha-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/lojinha-backend/internal/checkout"
	"github.com/angelmondragon/lojinha-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
)

// Checkout starts (or resumes) the payment attempt for one of the payer's
// orders and hands back the gateway redirect material.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		payerID, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		method := enums.PaymentMethodPix
		if payload.PaymentMethod != "" {
			method, err = enums.ParsePaymentMethod(payload.PaymentMethod)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
				return
			}
		}

		result, err := svc.Start(ctx, payload.OrderID, payerID, method)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type checkoutRequest struct {
	OrderID       uuid.UUID `json:"order_id" validate:"required,uuid4"`
	PaymentMethod string    `json:"payment_method" validate:"omitempty"`
}

type checkoutResponse struct {
	PaymentID          uuid.UUID       `json:"payment_id"`
	TransactionID      string          `json:"transaction_id"`
	PreferenceID       string          `json:"preference_id"`
	CheckoutURL        string          `json:"checkout_url"`
	SandboxCheckoutURL string          `json:"sandbox_checkout_url,omitempty"`
	PublicKey          string          `json:"public_key"`
	Amount             decimal.Decimal `json:"amount"`
	Status             string          `json:"status"`
}

func newCheckoutResponse(result *checkoutsvc.StartResult) checkoutResponse {
	if result == nil {
		return checkoutResponse{}
	}
	return checkoutResponse{
		PaymentID:          result.PaymentID,
		TransactionID:      result.TransactionID,
		PreferenceID:       result.PreferenceID,
		CheckoutURL:        result.CheckoutURL,
		SandboxCheckoutURL: result.SandboxCheckoutURL,
		PublicKey:          result.PublicKey,
		Amount:             result.Amount,
		Status:             result.Status.String(),
	}
}
