package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	app "github.com/R3E-Network/storefront/internal/app"
	"github.com/R3E-Network/storefront/internal/app/services/auth"
	"github.com/R3E-Network/storefront/internal/app/storage/sqlstore"
	"github.com/R3E-Network/storefront/internal/platform/migrations"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// newSQLEnv runs the API on a SQL store: an in-memory SQLite database, or
// Postgres when TEST_POSTGRES_DSN is set and dialect is postgres.
func newSQLEnv(t *testing.T, dialect string) *testEnv {
	t.Helper()

	var (
		db  *sqlx.DB
		err error
	)
	switch dialect {
	case migrations.DialectSQLite:
		db, err = sqlx.Open("sqlite", ":memory:")
		require.NoError(t, err)
		db.SetMaxOpenConns(1)
	case migrations.DialectPostgres:
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration")
		}
		db, err = sqlx.Open("postgres", dsn)
		require.NoError(t, err)
	}
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Apply(context.Background(), db.DB, dialect))

	application, err := app.New(app.StoresFrom(sqlstore.New(db)), app.Options{
		Auth:      auth.Config{Secret: testSecret, BcryptCost: bcrypt.MinCost},
		UploadDir: t.TempDir(),
	}, logger.Discard())
	require.NoError(t, err)

	api, err := New(application, Options{AuthRateLimit: 1000, AuthRateBurst: 1000, Logger: logger.Discard()})
	require.NoError(t, err)
	return &testEnv{t: t, app: application, handler: api}
}

func TestSQLBackedFlow(t *testing.T) {
	for _, dialect := range []string{migrations.DialectSQLite, migrations.DialectPostgres} {
		t.Run(dialect, func(t *testing.T) {
			env := newSQLEnv(t, dialect)
			suffix := strconv.FormatInt(time.Now().UnixNano(), 36)

			_, seller := env.registerAndLogin("seller" + suffix)
			_, buyer := env.registerAndLogin("buyer" + suffix)

			rec := env.do(http.MethodGet, "/api/categories", nil, "")
			require.Equal(t, http.StatusOK, rec.Code)

			productID := env.createProduct(seller, shirt(1))

			// Several buyers race for the last unit; exactly one wins.
			const racers = 8
			var wg sync.WaitGroup
			codes := make(chan int, racers)
			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					r := env.do(http.MethodPost, "/api/orders", map[string]interface{}{
						"product_id": productID, "quantity": 1,
					}, buyer)
					codes <- r.Code
				}()
			}
			wg.Wait()
			close(codes)

			won := 0
			for code := range codes {
				switch code {
				case http.StatusOK:
					won++
				case http.StatusBadRequest:
				default:
					t.Errorf("unexpected status %d", code)
				}
			}
			assert.Equal(t, 1, won)

			rec = env.do(http.MethodGet, fmt.Sprintf("/api/products/%d", productID), nil, "")
			var p map[string]interface{}
			decode(t, rec, &p)
			assert.Equal(t, float64(0), p["stock"])

			var views []map[string]interface{}
			rec = env.do(http.MethodGet, "/api/orders", nil, buyer)
			decode(t, rec, &views)
			require.Len(t, views, 1)
			assert.Equal(t, "seller"+suffix, views[0]["seller_username"])

			env.do(http.MethodDelete, fmt.Sprintf("/api/products/%d", productID), nil, seller)
		})
	}
}
