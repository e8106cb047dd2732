package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/storefront/internal/app/domain/payment"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/pkg/logger"
)

var payer = user.Identity{UserID: 5, Username: "payer", Role: user.RoleUser}

type counter struct{ n int }

func (c *counter) PaymentCompleted(payment.Payment) { c.n++ }

func TestPayRecordsCompletedPayment(t *testing.T) {
	store := memory.New()
	svc := New(store, 0, logger.Discard())
	obs := &counter{}
	svc.AttachObserver(obs)

	p, err := svc.Pay(context.Background(), payer, decimal.RequireFromString("1049.25"), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.ID, "PAY-"), p.ID)
	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Equal(t, "THB", p.Currency)
	assert.Equal(t, 1, obs.n)

	list, err := svc.List(context.Background(), payer.UserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}

func TestPayRejectsNonPositiveAmount(t *testing.T) {
	svc := New(memory.New(), 0, logger.Discard())
	_, err := svc.Pay(context.Background(), payer, decimal.Zero, "usd")
	assert.True(t, svcerrors.HasCode(err, svcerrors.CodeInvalidInput))
}

func TestPayHonoursCancellation(t *testing.T) {
	store := memory.New()
	svc := New(store, time.Minute, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.Pay(ctx, payer, decimal.NewFromInt(10), "THB")
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)

	list, _ := svc.List(context.Background(), 0)
	assert.Empty(t, list)
}

func TestPayWaitsForDelay(t *testing.T) {
	svc := New(memory.New(), 30*time.Millisecond, logger.Discard())
	start := time.Now()
	_, err := svc.Pay(context.Background(), payer, decimal.NewFromInt(10), "usd")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
