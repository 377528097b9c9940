package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
	"github.com/sajilotantra/sajilotantra-be/internal/payment"
)

// CheckoutInput is a payment request. Amount is in rupees.
type CheckoutInput struct {
	Amount          float64
	ProductIdentity string
	ProductName     string
}

// Checkout is the result of starting a payment.
type Checkout struct {
	Pidx       string         `json:"pidx"`
	PaymentURL string         `json:"payment_url"`
	ExpiresAt  string         `json:"expires_at,omitempty"`
	Payment    models.Payment `json:"payment"`
}

// Verification is the result of looking up a payment.
type Verification struct {
	Status        string         `json:"status"`
	TransactionID string         `json:"transaction_id"`
	TotalAmount   int64          `json:"total_amount"`
	Payment       models.Payment `json:"payment"`
}

// PaymentServiceProvider defines the interface for payment services.
type PaymentServiceProvider interface {
	Initiate(ctx context.Context, userID string, in CheckoutInput) (Checkout, error)
	Verify(ctx context.Context, userID, pidx string) (Verification, error)
}

// PaymentService records gateway checkouts.
type PaymentService struct {
	db          *sqlx.DB
	gateway     payment.Gateway
	users       UserServiceProvider
	frontendURL string
	now         func() time.Time
}

// NewPaymentService creates a new PaymentService. Return and website URLs
// are derived from frontendURL.
func NewPaymentService(db *sqlx.DB, gateway payment.Gateway, users UserServiceProvider, frontendURL string) *PaymentService {
	return &PaymentService{
		db:          db,
		gateway:     gateway,
		users:       users,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Initiate starts a checkout for userID and records it as Initiated.
func (s *PaymentService) Initiate(ctx context.Context, userID string, in CheckoutInput) (Checkout, error) {
	in.ProductIdentity = strings.TrimSpace(in.ProductIdentity)
	in.ProductName = strings.TrimSpace(in.ProductName)
	if in.Amount <= 0 || math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return Checkout{}, Invalid("Amount must be a positive number")
	}
	if in.ProductIdentity == "" || in.ProductName == "" {
		return Checkout{}, Invalid("productIdentity and productName are required")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return Checkout{}, err
	}

	paisa := int64(math.Round(in.Amount * 100))
	resp, err := s.gateway.Initiate(ctx, payment.InitiateRequest{
		ReturnURL:         s.frontendURL + "/dashboard",
		WebsiteURL:        s.frontendURL,
		Amount:            paisa,
		PurchaseOrderID:   in.ProductIdentity,
		PurchaseOrderName: in.ProductName,
		CustomerInfo: payment.Customer{
			Name:  strings.TrimSpace(user.FirstName + " " + user.LastName),
			Email: user.Email,
		},
	})
	if err != nil {
		return Checkout{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	now := s.now()
	p := models.Payment{
		ID:                uuid.New().String(),
		UserID:            userID,
		Pidx:              resp.Pidx,
		PurchaseOrderID:   in.ProductIdentity,
		PurchaseOrderName: in.ProductName,
		Amount:            paisa,
		Status:            models.PaymentInitiated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO payments (id, user_id, pidx, purchase_order_id, purchase_order_name, amount, status, transaction_id, created_at, updated_at)
		VALUES (:id, :user_id, :pidx, :purchase_order_id, :purchase_order_name, :amount, :status, :transaction_id, :created_at, :updated_at)`, &p)
	if err != nil {
		return Checkout{}, fmt.Errorf("record payment: %w", err)
	}
	return Checkout{Pidx: resp.Pidx, PaymentURL: resp.PaymentURL, ExpiresAt: resp.ExpiresAt, Payment: p}, nil
}

// Verify looks up a checkout owned by userID and stores the gateway status.
func (s *PaymentService) Verify(ctx context.Context, userID, pidx string) (Verification, error) {
	pidx = strings.TrimSpace(pidx)
	if pidx == "" {
		return Verification{}, Invalid("pidx is required")
	}
	var p models.Payment
	err := s.db.GetContext(ctx, &p, `SELECT * FROM payments WHERE pidx = ? AND user_id = ?`, pidx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Verification{}, fmt.Errorf("payment %s: %w", pidx, ErrNotFound)
	}
	if err != nil {
		return Verification{}, err
	}

	resp, err := s.gateway.Lookup(ctx, pidx)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	p.Status = resp.Status
	p.TransactionID = resp.TransactionID
	p.UpdatedAt = s.now()
	_, err = s.db.ExecContext(ctx, `UPDATE payments SET status = ?, transaction_id = ?, updated_at = ? WHERE id = ?`,
		p.Status, p.TransactionID, p.UpdatedAt, p.ID)
	if err != nil {
		return Verification{}, fmt.Errorf("update payment: %w", err)
	}
	return Verification{Status: resp.Status, TransactionID: resp.TransactionID, TotalAmount: resp.TotalAmount, Payment: p}, nil
}
