package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tailorshop/m/domain"
	"tailorshop/m/internal/accounts"
	"tailorshop/m/internal/catalog"
	"tailorshop/m/internal/database"
	"tailorshop/m/internal/database/dbtest"
	"tailorshop/m/internal/sales"
)

type testAPI struct {
	t      *testing.T
	db     *sqlx.DB
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	db := dbtest.New(t)
	sessions := database.NewSessions(db)
	logger := zaptest.NewLogger(t)
	h := New(
		catalog.NewStore(sessions, logger),
		accounts.NewStore(sessions, logger),
		sales.NewRecorder(sessions, logger),
		Options{Secret: "test-secret", TokenTTL: time.Hour},
		logger,
	)
	return &testAPI{t: t, db: db, router: h.Router()}
}

func (a *testAPI) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) createProduct(name, price string) domain.Product {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/products", fmt.Sprintf(`{"name":%q,"category":"tops","price":%s,"stock":4}`, name, price))
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Product](a.t, rec)
}

func (a *testAPI) createUser(name, email string, group int64) int64 {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/users", map[string]any{
		"name": name, "email": email, "password": "hunter22", "group_id": group,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[userCreatedResponse](a.t, rec).ID
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestRecordSaleEndToEnd(t *testing.T) {
	api := newTestAPI(t)
	shirt := api.createProduct("Shirt", "49.90")
	buyer := api.createUser("Ana", "ana@example.com", 3)

	rec := api.do(http.MethodPost, "/sales", fmt.Sprintf(
		`{"buyer_id":%d,"items":[{"product_id":%d,"quantity":2,"unit_price":49.90}]}`, buyer, shirt.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[saleResponse](t, rec)
	assert.NotZero(t, resp.SaleID)
	assert.NotEmpty(t, resp.Reference)
	assert.Equal(t, "sale registered", resp.Message)
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("99.80")), "total %s", resp.Total)

	assert.Equal(t, 1, dbtest.Count(t, api.db, "sales"))
	assert.Equal(t, 1, dbtest.Count(t, api.db, "sale_items"))

	rec = api.do(http.MethodGet, fmt.Sprintf("/sales/%d", resp.SaleID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sale := decode[domain.Sale](t, rec)
	assert.Equal(t, buyer, sale.BuyerID)
	assert.Equal(t, buyer, sale.AttendantID)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, int64(2), sale.Items[0].Quantity)
	assert.Equal(t, shirt.ID, sale.Items[0].ProductID)

	rec = api.do(http.MethodGet, fmt.Sprintf("/sales?buyer_id=%d", buyer), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Sale](t, rec), 1)
}

func TestRecordSaleFailures(t *testing.T) {
	api := newTestAPI(t)
	shirt := api.createProduct("Shirt", "49.90")
	buyer := api.createUser("Ana", "ana@example.com", 3)

	cases := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{"unknown product", fmt.Sprintf(`{"buyer_id":%d,"items":[{"product_id":%d,"quantity":1,"unit_price":1},{"product_id":999,"quantity":1,"unit_price":1}]}`, buyer, shirt.ID), http.StatusNotFound, "product 999"},
		{"unknown buyer", fmt.Sprintf(`{"buyer_id":555,"items":[{"product_id":%d,"quantity":1,"unit_price":1}]}`, shirt.ID), http.StatusNotFound, "buyer 555"},
		{"zero quantity", fmt.Sprintf(`{"buyer_id":%d,"items":[{"product_id":%d,"quantity":0,"unit_price":1}]}`, buyer, shirt.ID), http.StatusBadRequest, "items[0].quantity"},
		{"negative price", fmt.Sprintf(`{"buyer_id":%d,"items":[{"product_id":%d,"quantity":1,"unit_price":-2}]}`, buyer, shirt.ID), http.StatusBadRequest, "unit_price"},
		{"missing buyer", `{"items":[]}`, http.StatusBadRequest, "buyer_id is required"},
		{"unknown field", fmt.Sprintf(`{"buyer_id":%d,"discount":5}`, buyer), http.StatusBadRequest, "invalid request body"},
		{"malformed json", `{"buyer_id":`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/sales", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Contains(t, decode[map[string]string](t, rec)["error"], tc.errMsg)
		})
	}
	assert.Equal(t, 0, dbtest.Count(t, api.db, "sales"))
	assert.Equal(t, 0, dbtest.Count(t, api.db, "sale_items"))
}

func TestRecordSaleWithoutItems(t *testing.T) {
	api := newTestAPI(t)
	buyer := api.createUser("Ana", "ana@example.com", 3)

	rec := api.do(http.MethodPost, "/sales", fmt.Sprintf(`{"buyer_id":%d,"items":[]}`, buyer))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decode[saleResponse](t, rec).Total.IsZero())
	assert.Equal(t, 0, dbtest.Count(t, api.db, "sale_items"))
}

func TestLoginAndBearerAttendant(t *testing.T) {
	api := newTestAPI(t)
	shirt := api.createProduct("Shirt", "49.90")
	buyer := api.createUser("Ana", "ana@example.com", 3)
	seller := api.createUser("Bruno", "bruno@example.com", 2)

	rec := api.do(http.MethodPost, "/login", `{"email":"BRUNO@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[authResponse](t, rec)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, seller, login.User.ID)
	assert.NotContains(t, rec.Body.String(), "password")

	body := fmt.Sprintf(`{"buyer_id":%d,"items":[{"product_id":%d,"quantity":1,"unit_price":49.90}]}`, buyer, shirt.ID)
	rec = api.do(http.MethodPost, "/sales", body, "Authorization", "Bearer "+login.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, fmt.Sprintf("/sales/%d", decode[saleResponse](t, rec).SaleID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, seller, decode[domain.Sale](t, rec).AttendantID)

	rec = api.do(http.MethodPost, "/sales", body, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, dbtest.Count(t, api.db, "sales"))
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	api := newTestAPI(t)
	api.createUser("Ana", "ana@example.com", 3)

	for _, body := range []string{
		`{"email":"ana@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"hunter22"}`,
	} {
		rec := api.do(http.MethodPost, "/login", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
	}
}

func TestProductsCRUD(t *testing.T) {
	api := newTestAPI(t)
	for i := 1; i <= 3; i++ {
		api.createProduct(fmt.Sprintf("Tie %d", i), "15")
	}

	rec := api.do(http.MethodGet, "/products?offset=1&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[[]domain.Product](t, rec)
	require.Len(t, page, 1)
	assert.Equal(t, "Tie 2", page[0].Name)

	rec = api.do(http.MethodPut, fmt.Sprintf("/products/%d", page[0].ID), `{"name":"Silk tie","price":22.5,"stock":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Silk tie", decode[domain.Product](t, rec).Name)

	rec = api.do(http.MethodGet, "/products/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = api.do(http.MethodGet, "/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(http.MethodGet, "/products?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(http.MethodPost, "/products", `{"name":"","price":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(http.MethodPost, "/products", `{"name":"Belt","price":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodDelete, fmt.Sprintf("/products/%d", page[0].ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"product removed"}`, rec.Body.String())
	rec = api.do(http.MethodDelete, fmt.Sprintf("/products/%d", page[0].ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteProductInUse(t *testing.T) {
	api := newTestAPI(t)
	shirt := api.createProduct("Shirt", "49.90")
	buyer := api.createUser("Ana", "ana@example.com", 3)
	rec := api.do(http.MethodPost, "/sales", fmt.Sprintf(
		`{"buyer_id":%d,"items":[{"product_id":%d,"quantity":1,"unit_price":49.90}]}`, buyer, shirt.ID))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(http.MethodDelete, fmt.Sprintf("/products/%d", shirt.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodGet, fmt.Sprintf("/products/%d", shirt.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodDelete, fmt.Sprintf("/users/%d", buyer), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUsersEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Group](t, rec), 3)

	id := api.createUser("Ana", "ana@example.com", 3)

	rec = api.do(http.MethodPost, "/users", `{"name":"Other","email":"ANA@example.com","password":"x","group_id":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(http.MethodPost, "/users", `{"name":"Other","email":"other@example.com","password":"x","group_id":42}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(http.MethodPost, "/users", `{"name":"Other","email":"not-an-email","password":"x","group_id":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, dbtest.Count(t, api.db, "users"))

	rec = api.do(http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "password"))
	assert.Len(t, decode[[]domain.User](t, rec), 1)

	rec = api.do(http.MethodGet, fmt.Sprintf("/users/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana@example.com", decode[domain.User](t, rec).Email)

	rec = api.do(http.MethodDelete, fmt.Sprintf("/users/%d", id), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(http.MethodDelete, fmt.Sprintf("/users/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAmountsOutsideColumnRangeAreRejected(t *testing.T) {
	api := newTestAPI(t)
	shirt := api.createProduct("Shirt", "49.90")
	buyer := api.createUser("Ana", "ana@example.com", 3)

	for _, price := range []string{"1e50000000", "0.001", "10000000000", "1234567890123456.78"} {
		t.Run("sale "+price, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/sales", fmt.Sprintf(
				`{"buyer_id":%d,"items":[{"product_id":%d,"quantity":1,"unit_price":%s}]}`, buyer, shirt.ID, price))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode[map[string]string](t, rec)["error"], "unit_price")
		})
		t.Run("product "+price, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/products", fmt.Sprintf(`{"name":"Coat","price":%s}`, price))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode[map[string]string](t, rec)["error"], "price")
		})
	}

	rec := api.do(http.MethodPost, "/sales", fmt.Sprintf(
		`{"buyer_id":%d,"items":[{"product_id":%d,"quantity":3,"unit_price":9999999999}]}`, buyer, shirt.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "subtotal")

	assert.Equal(t, 0, dbtest.Count(t, api.db, "sales"))
	assert.Equal(t, 1, dbtest.Count(t, api.db, "products"))
}

func TestSaleResponseMatchesStoredSale(t *testing.T) {
	api := newTestAPI(t)
	shirt := api.createProduct("Shirt", "49.90")
	buyer := api.createUser("Ana", "ana@example.com", 3)

	rec := api.do(http.MethodPost, "/sales", fmt.Sprintf(
		`{"buyer_id":%d,"items":[{"product_id":%d,"quantity":3,"unit_price":1234567.89},{"product_id":%d,"quantity":1,"unit_price":"0.1"}]}`,
		buyer, shirt.ID, shirt.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total":3703703.77`)
	created := decode[saleResponse](t, rec)
	assert.NotEmpty(t, created.CreatedAt)

	rec = api.do(http.MethodGet, fmt.Sprintf("/sales/%d", created.SaleID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[domain.Sale](t, rec)
	assert.True(t, stored.Total.Equal(created.Total), "stored %s, returned %s", stored.Total, created.Total)
	require.Len(t, stored.Items, 2)
	assert.True(t, stored.Items[0].UnitPrice.Equal(decimal.RequireFromString("1234567.89")))
}

func TestCreateUserRejectsOverlongPassword(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/users", map[string]any{
		"name": "Ana", "email": "ana@example.com", "password": strings.Repeat("p", 80), "group_id": 3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "password")
	assert.Equal(t, 0, dbtest.Count(t, api.db, "users"))
}
