package controllers

import (
	"net/http"

	"github.com/angelmondragon/lojinha-backend/api/responses"
	checkoutsvc "github.com/angelmondragon/lojinha-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
)

// PaymentReturn lands the payer's browser after the gateway redirect. The
// response is always 200; the webhook reconciler remains the source of truth.
func PaymentReturn(svc checkoutsvc.Service, logg *logger.Logger, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		query := r.URL.Query()
		result := svc.HandleReturn(ctx, checkoutsvc.ReturnParams{
			Kind:              kind,
			ExternalReference: query.Get("external_reference"),
			CollectionID:      query.Get("collection_id"),
			CollectionStatus:  query.Get("collection_status"),
		})
		responses.WriteSuccess(w, result)
	}
}
