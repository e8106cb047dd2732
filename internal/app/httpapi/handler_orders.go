package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/services/orders"
	"github.com/R3E-Network/storefront/internal/httputil"
)

type createOrderRequest struct {
	ProductID       int64  `json:"product_id"`
	Quantity        int    `json:"quantity"`
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.app.Orders.Create(r.Context(), caller(r), orders.CreateInput{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Orders.List(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []order.View{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.app.Orders.UpdateStatus(r.Context(), id, caller(r), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

type paymentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type paymentResponse struct {
	Success   bool            `json:"success"`
	PaymentID string          `json:"paymentId"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

func (h *handler) pay(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.app.Payments.Pay(r.Context(), caller(r), req.Amount, req.Currency)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, paymentResponse{
		Success:   true,
		PaymentID: p.ID,
		Status:    p.Status,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
}
