package services

import (
	"context"
	"errors"

	"github.com/sajilotantra/sajilotantra-be/internal/models"
	"github.com/sajilotantra/sajilotantra-be/internal/payment"
)

type fakeGateway struct {
	initiated []payment.InitiateRequest
	status    string
	err       error
}

func (g *fakeGateway) Initiate(_ context.Context, req payment.InitiateRequest) (payment.InitiateResponse, error) {
	if g.err != nil {
		return payment.InitiateResponse{}, g.err
	}
	g.initiated = append(g.initiated, req)
	return payment.InitiateResponse{Pidx: "pidx-1", PaymentURL: "https://pay.example/pidx-1"}, nil
}

func (g *fakeGateway) Lookup(_ context.Context, pidx string) (payment.LookupResponse, error) {
	if g.err != nil {
		return payment.LookupResponse{}, g.err
	}
	return payment.LookupResponse{Pidx: pidx, Status: g.status, TransactionID: "tx-1", TotalAmount: 15050}, nil
}

func (s *ServiceSuite) TestPaymentInitiateAndVerify() {
	user := s.verifiedUser("sita@example.com")
	gw := &fakeGateway{status: models.PaymentCompleted}
	svc := NewPaymentService(s.db, gw, s.users, "http://localhost:5173/")

	_, err := svc.Initiate(s.ctx, user.ID, CheckoutInput{Amount: 0, ProductIdentity: "p", ProductName: "n"})
	var verr *ValidationError
	s.ErrorAs(err, &verr)

	checkout, err := svc.Initiate(s.ctx, user.ID, CheckoutInput{Amount: 150.5, ProductIdentity: "tax-2081", ProductName: "Property tax"})
	s.Require().NoError(err)
	s.Equal("pidx-1", checkout.Pidx)
	s.Equal(int64(15050), checkout.Payment.Amount)
	s.Equal(models.PaymentInitiated, checkout.Payment.Status)

	s.Require().Len(gw.initiated, 1)
	req := gw.initiated[0]
	s.Equal("http://localhost:5173/dashboard", req.ReturnURL)
	s.Equal("http://localhost:5173", req.WebsiteURL)
	s.Equal("Sita Sharma", req.CustomerInfo.Name)
	s.Equal(user.Email, req.CustomerInfo.Email)

	other := s.verifiedUser("other@example.com")
	_, err = svc.Verify(s.ctx, other.ID, "pidx-1")
	s.ErrorIs(err, ErrNotFound)

	v, err := svc.Verify(s.ctx, user.ID, "pidx-1")
	s.Require().NoError(err)
	s.Equal(models.PaymentCompleted, v.Status)
	s.Equal("tx-1", v.Payment.TransactionID)

	var status string
	s.Require().NoError(s.db.Get(&status, `SELECT status FROM payments WHERE pidx = ?`, "pidx-1"))
	s.Equal(models.PaymentCompleted, status)
}

func (s *ServiceSuite) TestPaymentGatewayFailure() {
	user := s.verifiedUser("sita@example.com")
	svc := NewPaymentService(s.db, &fakeGateway{err: errors.New("unreachable")}, s.users, "http://localhost:5173")

	_, err := svc.Initiate(s.ctx, user.ID, CheckoutInput{Amount: 10, ProductIdentity: "p", ProductName: "n"})
	s.ErrorIs(err, ErrGateway)

	var count int
	s.Require().NoError(s.db.Get(&count, `SELECT COUNT(*) FROM payments`))
	s.Zero(count)
}
