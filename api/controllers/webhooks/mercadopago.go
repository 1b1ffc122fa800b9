package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/lojinha-backend/api/responses"
	mercadopagowebhook "github.com/angelmondragon/lojinha-backend/internal/webhooks/mercadopago"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
)

const maxNotificationBody = 1 << 20

type MercadoPagoWebhookService interface {
	HandleNotification(ctx context.Context, notification *mercadopagowebhook.Notification) (mercadopagowebhook.Outcome, error)
}

type mercadoPagoWebhookGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
}

// MercadoPagoWebhook accepts gateway notifications, in both the JSON webhook
// shape and the query-string IPN shape, and feeds them to the reconciler.
func MercadoPagoWebhook(svc MercadoPagoWebhookService, guard mercadoPagoWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		notification, err := decodeNotification(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventID := notification.EventID()
		if eventID != "" {
			alreadyProcessed, err := guard.Seen(ctx, eventID)
			if err != nil {
				// Dedup is best-effort; the ledger tolerates replays.
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "event_id", eventID), "idempotency check failed, processing anyway")
				}
			} else if alreadyProcessed {
				responses.WriteSuccess(w, map[string]string{"status": "already_processed"})
				return
			}
		}

		outcome, err := svc.HandleNotification(ctx, notification)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Marking only after the reconciler finished keeps the gateway's
		// retries alive if we die mid-processing.
		if eventID != "" {
			if _, err := guard.CheckAndMark(ctx, eventID); err != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "event_id", eventID), "failed to mark event processed")
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": string(outcome)})
	}
}

// decodeNotification handles the delivery styles Mercado Pago uses: a JSON
// body with type/data.id, a form-encoded body, and the legacy topic/id query
// parameters.
func decodeNotification(r *http.Request) (*mercadopagowebhook.Notification, error) {
	notification := &mercadopagowebhook.Notification{}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode notification")
		}
		notification.Type = firstNonEmpty(r.PostForm.Get("type"), r.PostForm.Get("topic"))
		notification.Data.ID = firstNonEmpty(r.PostForm.Get("data.id"), r.PostForm.Get("id"))
		notification.ID = strings.TrimSpace(r.PostForm.Get("id"))
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBody))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
		}
		if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
			if err := json.Unmarshal(trimmed, notification); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode notification")
			}
		}
	}

	query := r.URL.Query()
	if notification.Type == "" {
		notification.Type = firstNonEmpty(query.Get("type"), query.Get("topic"))
	}
	if notification.Data.ID == "" {
		notification.Data.ID = firstNonEmpty(query.Get("data.id"), query.Get("id"))
	}
	if notification.ID == "" {
		notification.ID = query.Get("id")
	}

	if notification.Type == "" && notification.Data.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unrecognized notification payload")
	}
	return notification, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
