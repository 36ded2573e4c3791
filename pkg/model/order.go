package model

import "time"

type OrderStatus string

const (
	OrderCreated         OrderStatus = "created"
	OrderAwaitingDeposit OrderStatus = "awaiting_deposit"
	OrderPaid            OrderStatus = "paid"
	OrderCanceled        OrderStatus = "canceled"
	OrderExpired         OrderStatus = "expired"
)

// Order carries only what the expiry sweep needs. ExpiresAt is stamped at
// creation from the deposit deadline policy and never recomputed.
type Order struct {
	ID         string      `json:"id,omitempty" bson:"_id,omitempty"`
	Code       string      `json:"code" bson:"code"`
	CustomerID string      `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	Status     OrderStatus `json:"status" bson:"status" validate:"required,oneof=created awaiting_deposit paid canceled expired"`
	Quantity   int         `json:"quantity" bson:"quantity" validate:"min=1"`
	ExpiresAt  time.Time   `json:"expires_at" bson:"expires_at" validate:"required"`
	CreatedAt  time.Time   `json:"created_at" bson:"created_at"`
}
