package payments

import (
	"testing"

	"github.com/angelmondragon/lojinha-backend/pkg/enums"
)

func TestTranslateGatewayStatusMappings(t *testing.T) {
	tests := []struct {
		raw  string
		want enums.PaymentStatus
	}{
		{"approved", enums.PaymentStatusPaid},
		{"pending", enums.PaymentStatusPending},
		{"in_process", enums.PaymentStatusPending},
		{"rejected", enums.PaymentStatusDeclined},
		{"cancelled", enums.PaymentStatusCancelled},
		{"refunded", enums.PaymentStatusRefunded},
	}
	for _, tt := range tests {
		if got := TranslateGatewayStatus(tt.raw); got != tt.want {
			t.Fatalf("status %q expected %s got %s", tt.raw, tt.want, got)
		}
	}
}

func TestTranslateGatewayStatusIsTotal(t *testing.T) {
	for _, raw := range []string{"", "charged_back", "in_mediation", "something-new", "  APPROVED  "} {
		got := TranslateGatewayStatus(raw)
		if !got.IsValid() {
			t.Fatalf("input %q produced invalid status %q", raw, got)
		}
	}
	if got := TranslateGatewayStatus("  APPROVED  "); got != enums.PaymentStatusPaid {
		t.Fatalf("expected case-insensitive match, got %s", got)
	}
	if got := TranslateGatewayStatus("in_mediation"); got != enums.PaymentStatusPending {
		t.Fatalf("unknown status should fall back to pending, got %s", got)
	}
}
