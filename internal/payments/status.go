package payments

import (
	"strings"

	"github.com/angelmondragon/lojinha-backend/pkg/enums"
)

// gatewayStatusMap translates Mercado Pago payment statuses into ledger
// statuses. Unknown gateway statuses deliberately fall back to pending so an
// unrecognized value never strands a payment in a wrong terminal state.
var gatewayStatusMap = map[string]enums.PaymentStatus{
	"approved":   enums.PaymentStatusPaid,
	"pending":    enums.PaymentStatusPending,
	"in_process": enums.PaymentStatusPending,
	"rejected":   enums.PaymentStatusDeclined,
	"cancelled":  enums.PaymentStatusCancelled,
	"refunded":   enums.PaymentStatusRefunded,
}

// TranslateGatewayStatus maps a raw gateway status onto the ledger's state
// machine.
func TranslateGatewayStatus(raw string) enums.PaymentStatus {
	status, ok := gatewayStatusMap[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return enums.PaymentStatusPending
	}
	return status
}
