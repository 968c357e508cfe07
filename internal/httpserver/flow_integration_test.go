package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront/internal/dbtest"
	cartrepo "storefront/internal/repository/cart"
	categoryrepo "storefront/internal/repository/category"
	customerrepo "storefront/internal/repository/customer"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	tokenrepo "storefront/internal/repository/token"
	cartsvc "storefront/internal/service/cart"
	categorysvc "storefront/internal/service/category"
	customersvc "storefront/internal/service/customer"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	"storefront/internal/session"
)

const checkoutBody = `{
  "billing_address": {"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","phone":"555","address":"1 St","city":"London","state":"LDN","zip_code":"N1","country":"UK"},
  "shipping_address": {"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","phone":"555","address":"1 St","city":"London","state":"LDN","zip_code":"N1","country":"UK"},
  "payment_method": "credit_card"
}`

func TestStorefrontFlow_Integration(t *testing.T) {
	pool := dbtest.Pool(t)
	gin.SetMode(gin.TestMode)

	catID := dbtest.Category(t, pool, "Tools", "tools")
	hammer := dbtest.Product(t, pool, catID, "Hammer", "49.99", 5)
	saw := dbtest.Product(t, pool, catID, "Saw", "30.00", 2)

	sessions := session.NewMemoryStore(time.Hour)
	products := productrepo.NewPostgres(pool, nil)
	categories := categoryrepo.NewPostgres(pool)
	productService := productsvc.New(products, categories, "/storage", nil)
	carts := cartsvc.New(cartsvc.Deps{Carts: cartrepo.NewPostgres(pool), Products: products, Sessions: sessions, ImageBaseURL: "/storage"})
	router, err := buildRouter(nil, Deps{
		Products:   productService,
		Categories: categorysvc.New(categories, productService),
		Carts:      carts,
		Orders:     ordersvc.New(ordersvc.Deps{Orders: orderrepo.NewPostgres(pool, nil), Carts: carts, Sessions: sessions}),
		Customers:  customersvc.New(customerrepo.NewPostgres(pool, nil), tokenrepo.NewPostgres(pool), nil),
		Sessions:   sessions,
		Cookie:     CookieConfig{Name: "storefront_session", TTL: time.Hour},
	})
	require.NoError(t, err)
	h := &harness{router: router}

	// Anonymous visitor fills a session cart.
	first := h.do(http.MethodPost, fmt.Sprintf("/cart/items/%d", hammer), `{"quantity":2}`)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	sid := withCookie("storefront_session", sessionCookie(t, first).Value)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, fmt.Sprintf("/cart/items/%d", saw), `{"quantity":1}`, sid).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPost, fmt.Sprintf("/cart/items/%d", saw), `{"quantity":9}`, sid).Code)

	// Signing up and logging in moves the session cart to the customer.
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/auth/signup", `{"email":"ada@example.com","password":"Abcdefg1","first_name":"Ada"}`).Code)
	login := h.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"Abcdefg1"}`, sid)
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())
	var tokens struct {
		AccessToken string `json:"access_token"`
		CartMerge   struct {
			Merged int `json:"merged"`
		} `json:"cart_merge"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &tokens))
	assert.Equal(t, 2, tokens.CartMerge.Merged)
	auth := bearer(tokens.AccessToken)

	cart := h.do(http.MethodGet, "/cart", "", auth, sid)
	require.Equal(t, http.StatusOK, cart.Code)
	assert.Contains(t, cart.Body.String(), `"total":"129.98"`)
	assert.Contains(t, h.do(http.MethodGet, "/cart", "", sid).Body.String(), `"items":[]`)

	// Checkout places the order, decrements stock and empties the cart.
	placed := h.do(http.MethodPost, "/checkout", checkoutBody, auth, sid)
	require.Equal(t, http.StatusCreated, placed.Code, placed.Body.String())
	var created struct {
		Order struct {
			ID          int64  `json:"id"`
			OrderNumber string `json:"order_number"`
			Total       string `json:"total"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(placed.Body.Bytes(), &created))
	assert.Equal(t, "129.98", created.Order.Total)
	assert.True(t, strings.HasPrefix(created.Order.OrderNumber, "ORD-"), created.Order.OrderNumber)
	assert.Equal(t, 3, dbtest.Stock(t, pool, hammer))
	assert.Equal(t, 1, dbtest.Stock(t, pool, saw))

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/checkout", checkoutBody, auth, sid).Code)

	orderPath := fmt.Sprintf("/orders/%d", created.Order.ID)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, orderPath, "", auth).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, orderPath, "").Code)
	assert.Contains(t, h.do(http.MethodGet, "/me/orders", "", auth).Body.String(), created.Order.OrderNumber)
}
