package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order mirrors the order-placement service's table. The payment core reads
// orders to price and attribute payment attempts; it never creates or
// mutates them.
type Order struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Status        string          `gorm:"column:status;not null"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(10,2);not null"`
	DeliveryDate  *time.Time      `gorm:"column:delivery_date"`
	PaymentMethod string          `gorm:"column:payment_method;not null"`
	Address       string          `gorm:"column:address;not null"`
	City          string          `gorm:"column:city;not null"`
	State         string          `gorm:"column:state;not null"`
	ZipCode       string          `gorm:"column:zip_code;not null"`
	CPF           string          `gorm:"column:cpf;not null"`
	Phone         string          `gorm:"column:phone;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`

	User *User `gorm:"foreignKey:UserID"`
}
