package sqlstore

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/platform/migrations"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db.DB, migrations.DialectPostgres); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := New(db)
	buyer, err := store.CreateUser(ctx, user.User{Username: "it-" + t.Name(), PasswordHash: "h", Email: "it@x.test"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	p, err := store.CreateProduct(ctx, product.Product{
		Title: "Integration Tee", Description: "Test", Price: decimal.NewFromInt(150), Category: "shirts", Stock: 1,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	defer store.DeleteProduct(ctx, p.ID)

	if _, err := store.PlaceOrder(ctx, order.Placement{UserID: buyer.ID, ProductID: p.ID, Quantity: 1}); err != nil {
		t.Fatalf("place order: %v", err)
	}
	if _, err := store.PlaceOrder(ctx, order.Placement{UserID: buyer.ID, ProductID: p.ID, Quantity: 1}); err == nil {
		t.Fatal("expected second order to fail on empty stock")
	}
}
