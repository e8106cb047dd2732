package httpapi

import (
	"net/http"

	"github.com/R3E-Network/storefront/internal/app/domain/product"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/internal/httputil"
)

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), caller(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	patch, err := h.readUserPatch(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if patch.Username == nil && patch.Email == nil && patch.Phone == nil && patch.ImageURI == nil {
		h.fail(w, r, svcerrors.InvalidInput("Nothing to update"))
		return
	}
	u, err := h.app.Users.UpdateProfile(r.Context(), caller(r), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) adminUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Users.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) adminSetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.app.Users.SetRole(r.Context(), id, req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) adminOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Orders.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// adminProducts lists the whole catalogue, out-of-stock items included.
func (h *handler) adminProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Products.List(r.Context(), product.Filter{})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []product.Product{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Admin.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *handler) adminAudit(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.audit.listLimit(parseLimit(r.URL.Query().Get("limit"))))
}
