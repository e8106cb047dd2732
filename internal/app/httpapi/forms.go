package httpapi

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/uploads"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/internal/httputil"
)

// decodeBody decodes a JSON request body, reporting failures as InvalidInput.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := httputil.DecodeJSONBody(r.Body, dst); err != nil {
		return svcerrors.InvalidInput(err.Error())
	}
	return nil
}

// formOverhead is the room left for text fields next to the image.
const formOverhead = 1 << 20

// formData is a parsed multipart body with an optional "image" file.
type formData struct {
	values    url.Values
	file      multipart.File
	filename  string
	multipart *multipart.Form
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func (h *handler) parseMultipart(w http.ResponseWriter, r *http.Request) (*formData, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, svcerrors.InvalidInput("image too large")
		}
		return nil, svcerrors.InvalidInput("invalid multipart body")
	}

	fd := &formData{values: url.Values(r.MultipartForm.Value), multipart: r.MultipartForm}
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		if header.Size > h.maxUpload {
			file.Close()
			fd.close()
			return nil, svcerrors.InvalidInput("image too large")
		}
		fd.file, fd.filename = file, header.Filename
	case errors.Is(err, http.ErrMissingFile):
	default:
		fd.close()
		return nil, svcerrors.InvalidInput("invalid image field")
	}
	return fd, nil
}

func (f *formData) has(key string) bool {
	_, ok := f.values[key]
	return ok
}

func (f *formData) get(key string) string {
	return strings.TrimSpace(f.values.Get(key))
}

func (f *formData) optional(key string) *string {
	if !f.has(key) {
		return nil
	}
	v := f.get(key)
	return &v
}

// saveImage stores the uploaded file, returning its URI or "" when none was
// sent.
func (f *formData) saveImage(store *uploads.Store) (string, error) {
	if f.file == nil {
		return "", nil
	}
	return store.Save(f.filename, f.file)
}

func (f *formData) close() {
	if f.file != nil {
		f.file.Close()
	}
	if f.multipart != nil {
		_ = f.multipart.RemoveAll()
	}
}

// readProductPatch decodes a product body from JSON or a multipart form. An
// uploaded image overrides any image_uri field.
func (h *handler) readProductPatch(w http.ResponseWriter, r *http.Request) (product.Patch, error) {
	if !isMultipart(r) {
		var patch product.Patch
		if err := decodeBody(r, &patch); err != nil {
			return product.Patch{}, err
		}
		return patch, nil
	}

	form, err := h.parseMultipart(w, r)
	if err != nil {
		return product.Patch{}, err
	}
	defer form.close()

	patch := product.Patch{
		Title:       form.optional("title"),
		Description: form.optional("description"),
		Category:    form.optional("category"),
		Size:        form.optional("size"),
		Color:       form.optional("color"),
	}
	if raw := form.get("price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return product.Patch{}, svcerrors.InvalidInput("price must be a number")
		}
		patch.Price = &price
	}
	if raw := form.get("stock"); raw != "" {
		stock, err := strconv.Atoi(raw)
		if err != nil {
			return product.Patch{}, svcerrors.InvalidInput("stock must be an integer")
		}
		patch.Stock = &stock
	}
	uri, err := form.saveImage(h.app.Uploads)
	if err != nil {
		return product.Patch{}, err
	}
	if uri != "" {
		patch.ImageURI = &uri
	}
	return patch, nil
}

// readUserPatch decodes a profile update from JSON or a multipart form.
func (h *handler) readUserPatch(w http.ResponseWriter, r *http.Request) (user.Patch, error) {
	if !isMultipart(r) {
		var patch user.Patch
		if err := decodeBody(r, &patch); err != nil {
			return user.Patch{}, err
		}
		return patch, nil
	}

	form, err := h.parseMultipart(w, r)
	if err != nil {
		return user.Patch{}, err
	}
	defer form.close()

	patch := user.Patch{
		Username: form.optional("username"),
		Email:    form.optional("email"),
		Phone:    form.optional("phone"),
	}
	uri, err := form.saveImage(h.app.Uploads)
	if err != nil {
		return user.Patch{}, err
	}
	if uri != "" {
		patch.ImageURI = &uri
	}
	return patch, nil
}

type categoryRequest struct {
	Name     string `json:"name"`
	ImageURI string `json:"image_uri"`
}

func (h *handler) readCategory(w http.ResponseWriter, r *http.Request) (categoryRequest, error) {
	var req categoryRequest
	if !isMultipart(r) {
		if err := decodeBody(r, &req); err != nil {
			return req, err
		}
		return req, nil
	}

	form, err := h.parseMultipart(w, r)
	if err != nil {
		return req, err
	}
	defer form.close()

	req.Name = form.get("name")
	uri, err := form.saveImage(h.app.Uploads)
	if err != nil {
		return req, err
	}
	req.ImageURI = uri
	return req, nil
}
