package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/lojinha-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
	"github.com/angelmondragon/lojinha-backend/pkg/metrics"
)

const defaultBaseURL = "https://api.mercadopago.com"

var (
	errAccessTokenRequired = errors.New("mercadopago access token is required")
	errLoggerRequired      = errors.New("mercadopago logger is required")
)

// Client exposes Mercado Pago primitives with centralized auth, logging, and
// error mapping.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	publicKey   string
	sandbox     bool
	logger      *logger.Logger
	metrics     *metrics.PaymentMetrics
}

// NewClient initializes the Mercado Pago wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.MercadoPagoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:     baseURL,
		accessToken: accessToken,
		publicKey:   strings.TrimSpace(cfg.PublicKey),
		sandbox:     cfg.Sandbox,
		logger:      logg,
	}

	logg.Info(ctx, "mercadopago client initialized")
	return c, nil
}

// WithMetrics attaches a collector for outbound request durations.
func (c *Client) WithMetrics(m *metrics.PaymentMetrics) *Client {
	if c != nil {
		c.metrics = m
	}
	return c
}

// PublicKey returns the configured checkout public key for clients.
func (c *Client) PublicKey() string {
	if c == nil {
		return ""
	}
	return c.publicKey
}

// Sandbox reports whether the client targets the gateway's sandbox flow.
func (c *Client) Sandbox() bool {
	if c == nil {
		return false
	}
	return c.sandbox
}

// CreatePreference opens a hosted checkout preference for a payment attempt.
func (c *Client) CreatePreference(ctx context.Context, params PreferenceCreateParams) (*Preference, error) {
	c.log(ctx, "request", "create_preference", map[string]any{
		"external_reference": params.ExternalReference,
		"amount":             params.UnitPrice.String(),
		"payer_email":        params.PayerEmail,
	})

	pref := &Preference{}
	if err := c.do(ctx, "create_preference", http.MethodPost, "/checkout/preferences", params.toRequest(), pref); err != nil {
		c.log(ctx, "error", "create_preference", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "create preference")
	}

	c.log(ctx, "response", "create_preference", map[string]any{
		"preference_id":      pref.ID,
		"external_reference": pref.ExternalReference,
	})
	return pref, nil
}

// GetPayment fetches the authoritative state of a gateway payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id is required")
	}

	c.log(ctx, "request", "get_payment", map[string]any{"gateway_payment_id": id})

	payment := &Payment{}
	if err := c.do(ctx, "get_payment", http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, payment); err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "get payment")
	}

	c.log(ctx, "response", "get_payment", map[string]any{
		"gateway_payment_id": payment.ID,
		"status":             payment.Status,
		"external_reference": payment.ExternalReference,
	})
	return payment, nil
}

// statusError carries the HTTP status and parsed body of a gateway rejection.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("mercadopago returned %d: %s", e.status, e.message)
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, dest any) error {
	start := time.Now()
	defer func() {
		c.metrics.ObserveGatewayDuration(op, time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		message := "unknown error"
		var apiErr apiErrorBody
		if json.Unmarshal(raw, &apiErr) == nil {
			if apiErr.Message != "" {
				message = apiErr.Message
			} else if apiErr.Error != "" {
				message = apiErr.Error
			}
		}
		return &statusError{status: resp.StatusCode, message: message}
	}

	if dest != nil {
		if err := json.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}

func (c *Client) mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var httpErr *statusError
	if errors.As(err, &httpErr) {
		code := domainCodeForStatus(httpErr.status)
		wrapped := pkgerrors.Wrap(code, err, fmt.Sprintf("mercadopago %s failed", op))
		if pkgerrors.MetadataFor(code).DetailsAllowed {
			wrapped = wrapped.WithDetails(map[string]any{"gateway_message": httpErr.message})
		}
		return wrapped
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("mercadopago %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		// A rejected gateway credential is our misconfiguration, not the
		// caller's auth failure.
		return pkgerrors.CodeDependency
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeGatewayReject
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("mercadopago %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("mercadopago %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "email", "card", "cpf"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
