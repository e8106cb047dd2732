// Package orders runs the purchase workflow: validation, atomic placement
// against stock and status transitions.
package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Observer is notified about placement outcomes.
type Observer interface {
	OrderPlaced(o order.Order)
	StockRejected(productID int64)
}

// CreateInput is a purchase request from the caller.
type CreateInput struct {
	ProductID       int64
	Quantity        int
	ShippingAddress string
	PaymentMethod   string
}

// Service manages orders.
type Service struct {
	store           storage.OrderStore
	restockOnCancel bool
	observer        Observer
	log             *logger.Logger
}

// New constructs an order service. With restockOnCancel set, cancelling an
// order returns its quantity to stock.
func New(store storage.OrderStore, restockOnCancel bool, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	return &Service{store: store, restockOnCancel: restockOnCancel, log: log}
}

// AttachObserver registers an observer for placement outcomes.
func (s *Service) AttachObserver(o Observer) {
	s.observer = o
}

// Create places an order for the caller. The total is fixed from the product
// price at placement time.
func (s *Service) Create(ctx context.Context, buyer user.Identity, in CreateInput) (order.Order, error) {
	if in.ProductID <= 0 {
		return order.Order{}, svcerrors.InvalidInput("product_id is required")
	}
	if in.Quantity <= 0 {
		return order.Order{}, svcerrors.InvalidInput("quantity must be greater than zero")
	}

	placed, err := s.store.PlaceOrder(ctx, order.Placement{
		UserID:          buyer.UserID,
		ProductID:       in.ProductID,
		Quantity:        in.Quantity,
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
	})
	var stockErr *storage.StockError
	switch {
	case errors.As(err, &stockErr):
		if s.observer != nil {
			s.observer.StockRejected(in.ProductID)
		}
		return order.Order{}, svcerrors.InsufficientStock(stockErr.Available, stockErr.Requested)
	case errors.Is(err, storage.ErrNotFound):
		return order.Order{}, svcerrors.NotFound("Product")
	case err != nil:
		return order.Order{}, svcerrors.Internal("", err)
	}

	if s.observer != nil {
		s.observer.OrderPlaced(placed)
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"order_id":   placed.ID,
		"product_id": placed.ProductID,
		"quantity":   placed.Quantity,
	}).Info("order placed")
	return placed, nil
}

// UpdateStatus moves an order to status. Only the buyer or an admin may do so.
func (s *Service) UpdateStatus(ctx context.Context, id int64, caller user.Identity, status string) (order.Order, error) {
	st, ok := order.ParseStatus(status)
	if !ok {
		return order.Order{}, svcerrors.InvalidInput("Invalid status")
	}

	current, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return order.Order{}, svcerrors.NotFound("Order")
	}
	if err != nil {
		return order.Order{}, svcerrors.Internal("", err)
	}
	if !caller.CanActOn(current.UserID) {
		return order.Order{}, svcerrors.Forbidden("Not allowed to update this order")
	}

	updated, err := s.store.UpdateOrderStatus(ctx, id, st, s.restockOnCancel)
	if errors.Is(err, storage.ErrNotFound) {
		return order.Order{}, svcerrors.NotFound("Order")
	}
	if err != nil {
		return order.Order{}, svcerrors.Internal("", err)
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{"order_id": id, "status": st}).Info("order status changed")
	return updated, nil
}

// List returns the caller's orders, newest first.
func (s *Service) List(ctx context.Context, buyer user.Identity) ([]order.View, error) {
	views, err := s.store.ListOrders(ctx, buyer.UserID)
	if err != nil {
		return nil, svcerrors.Internal("", err)
	}
	return views, nil
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]order.View, error) {
	views, err := s.store.ListAllOrders(ctx)
	if err != nil {
		return nil, svcerrors.Internal("", err)
	}
	return views, nil
}
