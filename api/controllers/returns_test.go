package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	checkoutsvc "github.com/angelmondragon/lojinha-backend/internal/checkout"
)

func TestPaymentReturnForwardsQueryValues(t *testing.T) {
	paymentID := uuid.New()
	var got checkoutsvc.ReturnParams
	svc := &testCheckoutService{
		handleReturnFn: func(ctx context.Context, params checkoutsvc.ReturnParams) checkoutsvc.ReturnResult {
			got = params
			return checkoutsvc.ReturnResult{
				Success:   true,
				Message:   "payment approved",
				PaymentID: paymentID.String(),
				Status:    "paid",
			}
		},
	}

	url := "/api/v1/payments/return/success?external_reference=" + paymentID.String() +
		"&collection_id=987&collection_status=approved"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp := httptest.NewRecorder()
	PaymentReturn(svc, testLogger(), "success")(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got.Kind != "success" {
		t.Fatalf("unexpected kind %q", got.Kind)
	}
	if got.ExternalReference != paymentID.String() {
		t.Fatalf("unexpected external_reference %q", got.ExternalReference)
	}
	if got.CollectionID != "987" || got.CollectionStatus != "approved" {
		t.Fatalf("unexpected collection values %q %q", got.CollectionID, got.CollectionStatus)
	}

	var envelope struct {
		Data checkoutsvc.ReturnResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Success || envelope.Data.Status != "paid" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestPaymentReturnAlwaysSucceedsForBadReference(t *testing.T) {
	svc := &testCheckoutService{
		handleReturnFn: func(ctx context.Context, params checkoutsvc.ReturnParams) checkoutsvc.ReturnResult {
			return checkoutsvc.ReturnResult{Success: false, Message: "payment reference not recognized"}
		},
	}

	for _, kind := range []string{"success", "failure", "pending"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/return/"+kind+"?external_reference=garbage", nil)
		resp := httptest.NewRecorder()
		PaymentReturn(svc, testLogger(), kind)(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("kind %s: expected 200 got %d", kind, resp.Code)
		}
	}
}
