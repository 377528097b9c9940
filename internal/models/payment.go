package models

import "time"

// Payment statuses as reported by the gateway lookup.
const (
	PaymentInitiated = "Initiated"
	PaymentCompleted = "Completed"
	PaymentPending   = "Pending"
	PaymentFailed    = "Failed"
)

// Payment tracks one gateway checkout.
type Payment struct {
	ID                string    `json:"_id" db:"id"`
	UserID            string    `json:"userId" db:"user_id"`
	Pidx              string    `json:"pidx" db:"pidx"`
	PurchaseOrderID   string    `json:"purchaseOrderId" db:"purchase_order_id"`
	PurchaseOrderName string    `json:"purchaseOrderName" db:"purchase_order_name"`
	Amount            int64     `json:"amount" db:"amount"` // paisa
	Status            string    `json:"status" db:"status"`
	TransactionID     string    `json:"transactionId" db:"transaction_id"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}
