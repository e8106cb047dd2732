// Package client is a Go SDK for the storefront HTTP API. Besides the typed
// endpoint calls it carries the client-side state a shop front needs: a
// persisted session, a persisted cart and a checkout flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/R3E-Network/storefront/internal/httputil"
	"github.com/shopspring/decimal"
)

const (
	maxErrorBody    = 64 << 10
	maxResponseBody = 8 << 20
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:3000".
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Storage holds the bearer token. Defaults to an in-memory storage.
	Storage Storage
}

// Client calls the storefront API. The bearer token is read from storage on
// every request so a login in one place is seen everywhere.
type Client struct {
	httpClient *http.Client
	baseURL    string
	storage    Storage

	onUnauthorized func()
}

// New creates a client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	store := cfg.Storage
	if store == nil {
		store = NewMemoryStorage()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		storage:    store,
	}
}

// OnUnauthorized registers a hook run whenever the server answers 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// Storage returns the storage the client reads its token from.
func (c *Client) Storage() Storage {
	return c.storage
}

// Do sends a request and decodes a JSON response into out. body may be nil,
// an io.Reader sent as-is with contentType, or any value encoded as JSON.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, contentType string, out interface{}) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	token, ok, err := c.storage.Get(KeyToken)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
		defer c.onUnauthorized()
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, truncated, err := httputil.ReadAllWithLimit(resp.Body, maxErrorBody)
		if err != nil {
			return fmt.Errorf("read error response body: %w", err)
		}
		apiErr := &APIError{Status: resp.StatusCode}
		var parsed httputil.ErrorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Error
			apiErr.Details = parsed.Details
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
			if truncated {
				apiErr.Message += "...(truncated)"
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if target == nil {
		if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody)); err != nil {
			return fmt.Errorf("discard response body: %w", err)
		}
		return nil
	}

	body, err := httputil.ReadAllStrict(resp.Body, maxResponseBody)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Health checks GET /api/health.
func (c *Client) Health(ctx context.Context) error {
	return c.Do(ctx, http.MethodGet, "/api/health", nil, "", nil)
}

// RegisterInput is the body of a registration.
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

// Register creates an account and returns its id.
func (c *Client) Register(ctx context.Context, in RegisterInput) (int64, error) {
	var out struct {
		UserID int64 `json:"userId"`
	}
	if err := c.Do(ctx, http.MethodPost, "/api/register", in, "", &out); err != nil {
		return 0, err
	}
	return out.UserID, nil
}

// Login exchanges credentials for a token. It does not touch storage; use
// Session.Login to persist the result.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	body := map[string]string{"username": username, "password": password}
	err := c.Do(ctx, http.MethodPost, "/api/login", body, "", &out)
	return out, err
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	err := c.Do(ctx, http.MethodGet, "/api/users/me", nil, "", &out)
	return out, err
}

// ProfileUpdate lists the profile fields to change. Nil fields are kept.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	ImageURI *string `json:"image_uri,omitempty"`
}

// UpdateProfile changes the authenticated user's profile. A non-nil avatar is
// uploaded as a multipart image and replaces ImageURI.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate, avatar *Upload) (User, error) {
	var out User
	if avatar == nil {
		err := c.Do(ctx, http.MethodPut, "/api/users/me", in, "", &out)
		return out, err
	}
	fields := map[string]string{}
	setOptional(fields, "username", in.Username)
	setOptional(fields, "email", in.Email)
	setOptional(fields, "phone", in.Phone)
	body, contentType, err := multipartBody(fields, avatar)
	if err != nil {
		return User{}, err
	}
	err = c.Do(ctx, http.MethodPut, "/api/users/me", body, contentType, &out)
	return out, err
}

// ProductQuery filters the public product listing.
type ProductQuery struct {
	Search   string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	// IncludeOutOfStock lists products with no stock left.
	IncludeOutOfStock bool
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.MinPrice != nil {
		v.Set("minPrice", q.MinPrice.String())
	}
	if q.MaxPrice != nil {
		v.Set("maxPrice", q.MaxPrice.String())
	}
	if q.IncludeOutOfStock {
		v.Set("hideOutOfStock", "false")
	}
	return v
}

// Products lists the catalogue.
func (c *Client) Products(ctx context.Context, q ProductQuery) ([]Product, error) {
	path := "/api/products"
	if encoded := q.values().Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out []Product
	err := c.Do(ctx, http.MethodGet, path, nil, "", &out)
	return out, err
}

// Product fetches one product.
func (c *Client) Product(ctx context.Context, id int64) (Product, error) {
	var out Product
	err := c.Do(ctx, http.MethodGet, "/api/products/"+strconv.FormatInt(id, 10), nil, "", &out)
	return out, err
}

// ProductInput is a product create or update. Nil fields are left unchanged
// on update.
type ProductInput struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Size        *string          `json:"size,omitempty"`
	Color       *string          `json:"color,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	ImageURI    *string          `json:"image_uri,omitempty"`
}

func (in ProductInput) fields() map[string]string {
	fields := map[string]string{}
	setOptional(fields, "title", in.Title)
	setOptional(fields, "description", in.Description)
	setOptional(fields, "category", in.Category)
	setOptional(fields, "size", in.Size)
	setOptional(fields, "color", in.Color)
	setOptional(fields, "image_uri", in.ImageURI)
	if in.Price != nil {
		fields["price"] = in.Price.String()
	}
	if in.Stock != nil {
		fields["stock"] = strconv.Itoa(*in.Stock)
	}
	return fields
}

func (c *Client) sendProduct(ctx context.Context, method, path string, in ProductInput, image *Upload, out interface{}) error {
	if image == nil {
		return c.Do(ctx, method, path, in, "", out)
	}
	body, contentType, err := multipartBody(in.fields(), image)
	if err != nil {
		return err
	}
	return c.Do(ctx, method, path, body, contentType, out)
}

// CreateProduct lists a new product and returns its id. image is optional.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput, image *Upload) (int64, error) {
	var out struct {
		ProductID int64 `json:"productId"`
	}
	if err := c.sendProduct(ctx, http.MethodPost, "/api/products", in, image, &out); err != nil {
		return 0, err
	}
	return out.ProductID, nil
}

// UpdateProduct changes a product owned by the caller.
func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput, image *Upload) (Product, error) {
	var out Product
	err := c.sendProduct(ctx, http.MethodPut, "/api/products/"+strconv.FormatInt(id, 10), in, image, &out)
	return out, err
}

// DeleteProduct removes a product owned by the caller.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodDelete, "/api/products/"+strconv.FormatInt(id, 10), nil, "", nil)
}

// Categories lists the product categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := c.Do(ctx, http.MethodGet, "/api/categories", nil, "", &out)
	return out, err
}

// CreateCategory adds a category. Admin only.
func (c *Client) CreateCategory(ctx context.Context, name, imageURI string) (Category, error) {
	var out struct {
		Category Category `json:"category"`
	}
	body := map[string]string{"name": name, "image_uri": imageURI}
	err := c.Do(ctx, http.MethodPost, "/api/categories", body, "", &out)
	return out.Category, err
}

// OrderInput places an order for a single product.
type OrderInput struct {
	ProductID       int64  `json:"product_id"`
	Quantity        int    `json:"quantity"`
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

// CreateOrder places an order. Stock is reserved by the server.
func (c *Client) CreateOrder(ctx context.Context, in OrderInput) (Order, error) {
	var out Order
	err := c.Do(ctx, http.MethodPost, "/api/orders", in, "", &out)
	return out, err
}

// Orders lists the caller's purchases, newest first.
func (c *Client) Orders(ctx context.Context) ([]OrderView, error) {
	var out []OrderView
	err := c.Do(ctx, http.MethodGet, "/api/orders", nil, "", &out)
	return out, err
}

// UpdateOrderStatus moves an order through its lifecycle.
func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status string) (Order, error) {
	var out Order
	body := map[string]string{"status": status}
	err := c.Do(ctx, http.MethodPut, "/api/orders/"+strconv.FormatInt(id, 10)+"/status", body, "", &out)
	return out, err
}

// Pay charges amount in currency.
func (c *Client) Pay(ctx context.Context, amount decimal.Decimal, currency string) (Payment, error) {
	var out Payment
	body := struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}{amount, currency}
	err := c.Do(ctx, http.MethodPost, "/api/payments", body, "", &out)
	return out, err
}

// AdminUsers lists every account.
func (c *Client) AdminUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := c.Do(ctx, http.MethodGet, "/api/admin/users", nil, "", &out)
	return out, err
}

// SetUserRole changes an account's role.
func (c *Client) SetUserRole(ctx context.Context, id int64, role string) (User, error) {
	var out User
	body := map[string]string{"role": role}
	err := c.Do(ctx, http.MethodPut, "/api/admin/users/"+strconv.FormatInt(id, 10)+"/role", body, "", &out)
	return out, err
}

// AdminOrders lists every order.
func (c *Client) AdminOrders(ctx context.Context) ([]OrderView, error) {
	var out []OrderView
	err := c.Do(ctx, http.MethodGet, "/api/admin/orders", nil, "", &out)
	return out, err
}

// AdminProducts lists every product, out of stock ones included.
func (c *Client) AdminProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	err := c.Do(ctx, http.MethodGet, "/api/admin/products", nil, "", &out)
	return out, err
}

// AdminStats returns the dashboard figures.
func (c *Client) AdminStats(ctx context.Context) (Stats, error) {
	var out Stats
	err := c.Do(ctx, http.MethodGet, "/api/admin/stats", nil, "", &out)
	return out, err
}

// Upload is an image file sent with a multipart request.
type Upload struct {
	Filename string
	Data     io.Reader
}

func multipartBody(fields map[string]string, file *Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if file != nil {
		name := file.Filename
		if name == "" {
			name = "image"
		}
		part, err := w.CreateFormFile("image", name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, file.Data); err != nil {
			return nil, "", fmt.Errorf("copy upload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func setOptional(fields map[string]string, key string, v *string) {
	if v != nil {
		fields[key] = *v
	}
}
