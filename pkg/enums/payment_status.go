package enums

import "fmt"

// PaymentStatus tracks the lifecycle of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusDeclined  PaymentStatus = "declined"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusDeclined,
	PaymentStatusCancelled,
	PaymentStatusRefunded,
}

// paymentTransitions declares every permitted status change. Statuses absent
// from the map are terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {
		PaymentStatusPaid,
		PaymentStatusDeclined,
		PaymentStatusCancelled,
	},
	PaymentStatusPaid: {
		PaymentStatusRefunded,
	},
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves this status.
func (p PaymentStatus) IsTerminal() bool {
	return p.IsValid() && len(paymentTransitions[p]) == 0
}

// IsFinalized reports whether the gateway has settled this attempt. A
// finalized row keeps its identity and money fields frozen even when a
// further transition (paid to refunded) is still legal.
func (p PaymentStatus) IsFinalized() bool {
	return p.IsValid() && p != PaymentStatusPending
}

// CanTransitionTo reports whether the state machine permits moving from p to
// target. A same-status transition is not permitted here; callers treat it as
// an idempotent no-op before consulting the machine.
func (p PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, candidate := range paymentTransitions[p] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
