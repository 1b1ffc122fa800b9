package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/lojinha-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lojinha-backend/pkg/errors"
)

// Payment records one payment attempt against an order. Rows are never hard
// deleted; terminal attempts are retained for audit.
type Payment struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	PayerID              uuid.UUID           `gorm:"column:payer_id;type:uuid;not null;index"`
	Method               enums.PaymentMethod `gorm:"column:method;type:payment_method;not null;default:'pix'"`
	Status               enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	Amount               decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	TransactionID        string              `gorm:"column:transaction_id;not null;unique"`
	GatewayPaymentRef    *string             `gorm:"column:gateway_payment_ref"`
	GatewayPreferenceRef *string             `gorm:"column:gateway_preference_ref"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// ProtectedFieldsFrozen reports whether the row's identity and money fields
// may no longer change.
func (p *Payment) ProtectedFieldsFrozen() bool {
	return p.Status.IsFinalized()
}

// BeforeUpdate rejects writes that would alter frozen fields on a row whose
// stored status is already terminal. Gateway refs may still be attached once
// if they were never recorded.
func (p *Payment) BeforeUpdate(tx *gorm.DB) error {
	var current Payment
	err := tx.Session(&gorm.Session{NewDB: true}).
		Where("id = ?", p.ID).
		First(&current).Error
	if err != nil {
		return err
	}
	if !current.ProtectedFieldsFrozen() {
		return nil
	}

	frozen := p.OrderID != current.OrderID ||
		p.PayerID != current.PayerID ||
		p.Method != current.Method ||
		!p.Amount.Equal(current.Amount) ||
		p.TransactionID != current.TransactionID ||
		refChanged(current.GatewayPaymentRef, p.GatewayPaymentRef) ||
		refChanged(current.GatewayPreferenceRef, p.GatewayPreferenceRef)
	if frozen {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "protected payment fields are frozen").
			WithDetails(map[string]any{"status": current.Status.String()})
	}
	return nil
}

func refChanged(stored, incoming *string) bool {
	if stored == nil {
		return false
	}
	return incoming == nil || *incoming != *stored
}
