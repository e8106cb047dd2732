// Package payments is a stub gateway: after a fixed delay every payment
// succeeds and is recorded for audit.
package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/storefront/internal/app/domain/payment"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Observer is notified about completed payments.
type Observer interface {
	PaymentCompleted(p payment.Payment)
}

// Service processes mock payments.
type Service struct {
	store    storage.PaymentStore
	delay    time.Duration
	observer Observer
	log      *logger.Logger
	now      func() time.Time
}

// New constructs a payment service.
func New(store storage.PaymentStore, delay time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payments")
	}
	return &Service{store: store, delay: delay, log: log, now: time.Now}
}

// AttachObserver registers an observer for completed payments.
func (s *Service) AttachObserver(o Observer) {
	s.observer = o
}

func (s *Service) newID() string {
	return fmt.Sprintf("PAY-%d-%s", s.now().UnixMilli(), strings.ToUpper(uuid.NewString()[:8]))
}

// Pay waits out the simulated gateway delay, then records a completed
// payment. Cancelling ctx aborts the wait and nothing is recorded.
func (s *Service) Pay(ctx context.Context, payer user.Identity, amount decimal.Decimal, currency string) (payment.Payment, error) {
	if !amount.IsPositive() {
		return payment.Payment{}, svcerrors.InvalidInput("amount must be greater than zero")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = payment.DefaultCurrency
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return payment.Payment{}, ctx.Err()
		case <-timer.C:
		}
	}

	p := payment.Payment{
		ID:        s.newID(),
		UserID:    payer.UserID,
		Amount:    amount,
		Currency:  currency,
		Status:    payment.StatusCompleted,
		CreatedAt: s.now().UTC(),
	}
	recorded, err := s.store.CreatePayment(ctx, p)
	if err != nil {
		return payment.Payment{}, svcerrors.Internal("", err)
	}
	if s.observer != nil {
		s.observer.PaymentCompleted(recorded)
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"payment_id": recorded.ID,
		"amount":     recorded.Amount.String(),
		"currency":   recorded.Currency,
	}).Info("payment completed")
	return recorded, nil
}

// List returns the payments recorded for userID, or all when userID is zero.
func (s *Service) List(ctx context.Context, userID int64) ([]payment.Payment, error) {
	list, err := s.store.ListPayments(ctx, userID)
	if err != nil {
		return nil, svcerrors.Internal("", err)
	}
	return list, nil
}
