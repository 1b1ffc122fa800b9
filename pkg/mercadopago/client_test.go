package mercadopago

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lojinha-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client, err := NewClient(context.Background(), config.MercadoPagoConfig{
		AccessToken:    "TEST-token",
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		Sandbox:        true,
	}, logg)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestCreatePreferenceSendsExpectedPayload(t *testing.T) {
	var captured preferenceRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/preferences" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer TEST-token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pref-123","init_point":"https://mp/init","sandbox_init_point":"https://mp/sandbox","external_reference":"pay-1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	pref, err := client.CreatePreference(context.Background(), PreferenceCreateParams{
		Title:             "Pedido #42",
		UnitPrice:         decimal.RequireFromString("250.00"),
		Currency:          "brl",
		PayerName:         "Maria",
		PayerEmail:        "maria@example.com",
		ExternalReference: "pay-1",
		NotificationURL:   "https://shop.example.com/api/v1/webhooks/mercadopago",
		BackURLs: BackURLs{
			Success: "https://shop.example.com/api/v1/payments/return/success",
			Failure: "https://shop.example.com/api/v1/payments/return/failure",
			Pending: "https://shop.example.com/api/v1/payments/return/pending",
		},
	})
	if err != nil {
		t.Fatalf("CreatePreference returned error: %v", err)
	}

	if pref.ID != "pref-123" {
		t.Fatalf("unexpected preference id %q", pref.ID)
	}
	if got := pref.CheckoutURL(true); got != "https://mp/sandbox" {
		t.Fatalf("expected sandbox init point, got %q", got)
	}
	if got := pref.CheckoutURL(false); got != "https://mp/init" {
		t.Fatalf("expected production init point, got %q", got)
	}

	if len(captured.Items) != 1 {
		t.Fatalf("expected a single item, got %d", len(captured.Items))
	}
	item := captured.Items[0]
	if item.Quantity != 1 {
		t.Fatalf("expected quantity defaulted to 1, got %d", item.Quantity)
	}
	if !item.UnitPrice.Equal(decimal.RequireFromString("250.00")) {
		t.Fatalf("unexpected unit price %s", item.UnitPrice)
	}
	if item.CurrencyID != "BRL" {
		t.Fatalf("expected currency normalized to BRL, got %q", item.CurrencyID)
	}
	if captured.ExternalReference != "pay-1" {
		t.Fatalf("unexpected external reference %q", captured.ExternalReference)
	}
	if captured.AutoReturn != "approved" {
		t.Fatalf("expected auto_return approved, got %q", captured.AutoReturn)
	}
}

func TestGetPaymentReturnsAuthoritativeState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/987" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":987,"status":"approved","status_detail":"accredited","external_reference":"pay-1","transaction_amount":250.00}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	payment, err := client.GetPayment(context.Background(), "987")
	if err != nil {
		t.Fatalf("GetPayment returned error: %v", err)
	}
	if payment.Status != "approved" {
		t.Fatalf("unexpected status %q", payment.Status)
	}
	if payment.ExternalReference != "pay-1" {
		t.Fatalf("unexpected external reference %q", payment.ExternalReference)
	}
}

func TestGetPaymentMapsGatewayStatuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode pkgerrors.Code
	}{
		{
			name:     "not found",
			status:   http.StatusNotFound,
			body:     `{"message":"Payment not found","status":404}`,
			wantCode: pkgerrors.CodeNotFound,
		},
		{
			name:     "rejected request",
			status:   http.StatusBadRequest,
			body:     `{"message":"invalid payment id","status":400}`,
			wantCode: pkgerrors.CodeGatewayReject,
		},
		{
			name:     "invalid access token",
			status:   http.StatusUnauthorized,
			body:     `{"message":"invalid access token","status":401}`,
			wantCode: pkgerrors.CodeDependency,
		},
		{
			name:     "forbidden credential",
			status:   http.StatusForbidden,
			body:     `{"message":"credentials not allowed","status":403}`,
			wantCode: pkgerrors.CodeDependency,
		},
		{
			name:     "gateway outage",
			status:   http.StatusInternalServerError,
			body:     `{"message":"internal error"}`,
			wantCode: pkgerrors.CodeDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.GetPayment(context.Background(), "987")
			if err == nil {
				t.Fatal("expected error")
			}
			typed := pkgerrors.As(err)
			if typed == nil {
				t.Fatalf("result is not a domain error: %v", err)
			}
			if typed.Code() != tt.wantCode {
				t.Fatalf("expected code %s, got %s", tt.wantCode, typed.Code())
			}
		})
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("payer_email", "maria@example.com"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "approved"); v != "approved" {
		t.Fatalf("unexpected redaction for safe key")
	}
}
