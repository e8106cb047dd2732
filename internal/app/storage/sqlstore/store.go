// Package sqlstore implements the storage interfaces on PostgreSQL or SQLite
// through sqlx. Queries are written with ? placeholders and rebound for the
// connected driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/R3E-Network/storefront/internal/app/domain/category"
	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/payment"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
)

// Store implements storage.Store on a relational database.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) q(query string) string { return s.db.Rebind(query) }

func now() time.Time { return time.Now().UTC() }

// isUniqueViolation recognises duplicate key errors from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, storage.ErrNotFound)...)
	}
	return err
}

// assignments collects the SET clause of a partial update.
type assignments struct {
	cols []string
	args []interface{}
}

func (a *assignments) add(col string, value interface{}) {
	a.cols = append(a.cols, col+" = ?")
	a.args = append(a.args, value)
}

// update writes the assigned columns plus updated_at in one statement and
// returns sql.ErrNoRows when no row has id.
func (s *Store) update(ctx context.Context, table string, id int64, set assignments) error {
	set.add("updated_at", now())
	args := append(set.args, id)
	result, err := s.db.ExecContext(ctx, s.q(`UPDATE `+table+` SET `+strings.Join(set.cols, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- UserStore --------------------------------------------------------------

const userColumns = `id, username, password, email, phone, role, image_uri, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.Role == "" {
		u.Role = user.RoleUser
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt

	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO users (username, password, email, phone, role, image_uri, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), u.Username, u.PasswordHash, u.Email, u.Phone, u.Role, u.ImageURI, u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, fmt.Errorf("username %q: %w", u.Username, storage.ErrConflict)
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, patch user.Patch) (user.User, error) {
	var set assignments
	if patch.Username != nil {
		set.add("username", *patch.Username)
	}
	if patch.Email != nil {
		set.add("email", *patch.Email)
	}
	if patch.Phone != nil {
		set.add("phone", *patch.Phone)
	}
	if patch.ImageURI != nil {
		set.add("image_uri", *patch.ImageURI)
	}
	if err := s.update(ctx, "users", id, set); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, fmt.Errorf("user %d username: %w", id, storage.ErrConflict)
		}
		return user.User{}, notFound(err, "user %d", id)
	}
	return s.GetUser(ctx, id)
}

func (s *Store) SetUserRole(ctx context.Context, id int64, role user.Role) (user.User, error) {
	var set assignments
	set.add("role", role)
	if err := s.update(ctx, "users", id, set); err != nil {
		return user.User{}, notFound(err, "user %d", id)
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return user.User{}, notFound(err, "user %d", id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	if err != nil {
		return user.User{}, notFound(err, "user %q", username)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	users := []user.User{}
	if err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, err
	}
	return users, nil
}

// --- ProductStore -----------------------------------------------------------

const productColumns = `id, title, description, price, category, size, color, stock, image_uri, seller_id, created_at, updated_at`

func (s *Store) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO products (title, description, price, category, size, color, stock, image_uri, seller_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), p.Title, p.Description, p.Price, p.Category, p.Size, p.Color, p.Stock, p.ImageURI, p.SellerID,
		p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int64, patch product.Patch) (product.Product, error) {
	var set assignments
	if patch.Title != nil {
		set.add("title", *patch.Title)
	}
	if patch.Description != nil {
		set.add("description", *patch.Description)
	}
	if patch.Price != nil {
		set.add("price", *patch.Price)
	}
	if patch.Category != nil {
		set.add("category", *patch.Category)
	}
	if patch.Size != nil {
		set.add("size", *patch.Size)
	}
	if patch.Color != nil {
		set.add("color", *patch.Color)
	}
	if patch.Stock != nil {
		set.add("stock", *patch.Stock)
	}
	if patch.ImageURI != nil {
		set.add("image_uri", *patch.ImageURI)
	}
	if err := s.update(ctx, "products", id, set); err != nil {
		return product.Product{}, notFound(err, "product %d", id)
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (product.Product, error) {
	var p product.Product
	err := s.db.GetContext(ctx, &p, s.q(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	if err != nil {
		return product.Product{}, notFound(err, "product %d", id)
	}
	return p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("product %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) ListProducts(ctx context.Context, f product.Filter) ([]product.Product, error) {
	var (
		where []string
		args  []interface{}
	)
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		pattern := "%" + likeEscaper.Replace(q) + "%"
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if f.Category != "" {
		where = append(where, `category = ?`)
		args = append(args, f.Category)
	}
	if f.MinPrice != nil {
		where = append(where, `price >= ?`)
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, `price <= ?`)
		args = append(args, *f.MaxPrice)
	}
	if f.HideOutOfStock {
		where = append(where, `stock > 0`)
	}
	if f.SellerID != 0 {
		where = append(where, `seller_id = ?`)
		args = append(args, f.SellerID)
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY id`

	products := []product.Product{}
	if err := s.db.SelectContext(ctx, &products, s.q(query), args...); err != nil {
		return nil, err
	}
	return products, nil
}

// --- CategoryStore ----------------------------------------------------------

func (s *Store) CreateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO categories (name, image_uri) VALUES (?, ?) RETURNING id
	`), c.Name, c.ImageURI).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return category.Category{}, fmt.Errorf("category %q: %w", c.Name, storage.ErrConflict)
		}
		return category.Category{}, err
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]category.Category, error) {
	categories := []category.Category{}
	if err := s.db.SelectContext(ctx, &categories, `SELECT id, name, image_uri FROM categories ORDER BY id`); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) CountCategories(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM categories`); err != nil {
		return 0, err
	}
	return n, nil
}

// --- OrderStore -------------------------------------------------------------

const orderColumns = `id, user_id, product_id, quantity, total_price, shipping_address, payment_method, status, created_at, updated_at`

// PlaceOrder runs the conditional stock decrement and the order insert in one
// transaction. The WHERE stock >= ? guard serialises concurrent buyers on the
// product row.
func (s *Store) PlaceOrder(ctx context.Context, pl order.Placement) (order.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return order.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	var price decimal.Decimal
	err = tx.GetContext(ctx, &price, s.q(`
		UPDATE products SET stock = stock - ?, updated_at = ?
		WHERE id = ? AND stock >= ?
		RETURNING price
	`), pl.Quantity, ts, pl.ProductID, pl.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		var available int
		lookupErr := tx.GetContext(ctx, &available, s.q(`SELECT stock FROM products WHERE id = ?`), pl.ProductID)
		if lookupErr != nil {
			return order.Order{}, notFound(lookupErr, "product %d", pl.ProductID)
		}
		return order.Order{}, &storage.StockError{ProductID: pl.ProductID, Available: available, Requested: pl.Quantity}
	}
	if err != nil {
		return order.Order{}, err
	}

	o := order.Order{
		UserID:          pl.UserID,
		ProductID:       pl.ProductID,
		Quantity:        pl.Quantity,
		TotalPrice:      price.Mul(decimal.NewFromInt(int64(pl.Quantity))),
		ShippingAddress: pl.ShippingAddress,
		PaymentMethod:   pl.PaymentMethod,
		Status:          order.StatusPending,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	err = tx.QueryRowxContext(ctx, s.q(`
		INSERT INTO orders (user_id, product_id, quantity, total_price, shipping_address, payment_method, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), o.UserID, o.ProductID, o.Quantity, o.TotalPrice, o.ShippingAddress, o.PaymentMethod, o.Status,
		o.CreatedAt, o.UpdatedAt).Scan(&o.ID)
	if err != nil {
		return order.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (order.Order, error) {
	var o order.Order
	err := s.db.GetContext(ctx, &o, s.q(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), id)
	if err != nil {
		return order.Order{}, notFound(err, "order %d", id)
	}
	return o, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status order.Status, restock bool) (order.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return order.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	if restock && status == order.StatusCancelled {
		var line struct {
			ProductID int64 `db:"product_id"`
			Quantity  int   `db:"quantity"`
		}
		// Only the transition into cancelled returns stock, so a repeated
		// cancel is a no-op.
		err := tx.GetContext(ctx, &line, s.q(`
			UPDATE orders SET status = ?, updated_at = ?
			WHERE id = ? AND status <> ?
			RETURNING product_id, quantity
		`), status, ts, id, order.StatusCancelled)
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx, s.q(`
				UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?
			`), line.Quantity, ts, line.ProductID); err != nil {
				return order.Order{}, err
			}
		case errors.Is(err, sql.ErrNoRows):
			// Already cancelled or absent; fall through to the plain update.
		default:
			return order.Order{}, err
		}
	}

	result, err := tx.ExecContext(ctx, s.q(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`), status, ts, id)
	if err != nil {
		return order.Order{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return order.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}

	var o order.Order
	if err := tx.GetContext(ctx, &o, s.q(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), id); err != nil {
		return order.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

const orderViewQuery = `
	SELECT o.id, o.user_id, o.product_id, o.quantity, o.total_price, o.shipping_address, o.payment_method,
		o.status, o.created_at, o.updated_at,
		COALESCE(p.title, '') AS product_title,
		COALESCE(p.image_uri, '') AS product_image,
		COALESCE(p.seller_id, 0) AS seller_id,
		COALESCE(su.username, '') AS seller_username,
		COALESCE(bu.username, '') AS buyer_username
	FROM orders o
	LEFT JOIN products p ON p.id = o.product_id
	LEFT JOIN users su ON su.id = p.seller_id
	LEFT JOIN users bu ON bu.id = o.user_id`

func (s *Store) ListOrders(ctx context.Context, userID int64) ([]order.View, error) {
	views := []order.View{}
	err := s.db.SelectContext(ctx, &views, s.q(orderViewQuery+`
		WHERE o.user_id = ?
		ORDER BY o.created_at DESC, o.id DESC`), userID)
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Store) ListAllOrders(ctx context.Context) ([]order.View, error) {
	views := []order.View{}
	if err := s.db.SelectContext(ctx, &views, orderViewQuery+` ORDER BY o.created_at DESC, o.id DESC`); err != nil {
		return nil, err
	}
	return views, nil
}

// --- PaymentStore -----------------------------------------------------------

func (s *Store) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO payments (id, user_id, amount, currency, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), p.ID, p.UserID, p.Amount, p.Currency, p.Status, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return payment.Payment{}, fmt.Errorf("payment %s: %w", p.ID, storage.ErrConflict)
		}
		return payment.Payment{}, err
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, userID int64) ([]payment.Payment, error) {
	query := `SELECT id, user_id, amount, currency, status, created_at FROM payments`
	var args []interface{}
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	payments := []payment.Payment{}
	if err := s.db.SelectContext(ctx, &payments, s.q(query+` ORDER BY created_at`), args...); err != nil {
		return nil, err
	}
	return payments, nil
}
