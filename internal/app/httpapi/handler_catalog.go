package httpapi

import (
	"net/http"

	"github.com/R3E-Network/storefront/internal/app/domain/category"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/services/products"
	"github.com/R3E-Network/storefront/internal/httputil"
)

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := products.ParseFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.app.Products.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []product.Product{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.app.Products.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	patch, err := h.readProductPatch(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var p product.Product
	patch.Apply(&p)

	created, err := h.app.Products.Create(r.Context(), caller(r), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		Message   string `json:"message"`
		ProductID int64  `json:"productId"`
	}{"Product created", created.ID})
}

func (h *handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	patch, err := h.readProductPatch(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.app.Products.Update(r.Context(), id, caller(r), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.app.Products.Delete(r.Context(), id, caller(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Product deleted"})
}

func (h *handler) listCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Categories.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []category.Category{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) createCategory(w http.ResponseWriter, r *http.Request) {
	req, err := h.readCategory(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.app.Categories.Create(r.Context(), req.Name, req.ImageURI)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		Message  string            `json:"message"`
		Category category.Category `json:"category"`
	}{"Category created", c})
}
