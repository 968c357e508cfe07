package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront/internal/domain"
	custrepo "storefront/internal/repository/customer"
	productrepo "storefront/internal/repository/product"
	cartsvc "storefront/internal/service/cart"
	customersvc "storefront/internal/service/customer"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	"storefront/internal/telemetry"
)

type stubProductService struct {
	product *domain.Product
	err     error
	created productsvc.ProductInput
	filter  productrepo.ListFilter
}

func (s *stubProductService) List(_ context.Context, f productrepo.ListFilter) (*productrepo.Page, error) {
	s.filter = f
	return &productrepo.Page{Items: []domain.Product{}, CurrentPage: 1, LastPage: 1, PerPage: 12}, s.err
}

func (s *stubProductService) Get(context.Context, int64) (*domain.Product, error) {
	return s.product, s.err
}

func (s *stubProductService) Related(context.Context, domain.Product) ([]domain.Product, error) {
	return []domain.Product{}, nil
}

func (s *stubProductService) SpecialOffer(context.Context) (*domain.Product, error) {
	return s.product, s.err
}

func (s *stubProductService) Create(_ context.Context, in productsvc.ProductInput) (*domain.Product, error) {
	s.created = in
	return s.product, s.err
}

func (s *stubProductService) Update(context.Context, int64, productsvc.ProductPatch) (*domain.Product, error) {
	return s.product, s.err
}

func (s *stubProductService) Delete(context.Context, int64) error {
	return s.err
}

type stubCategoryService struct{}

func (stubCategoryService) List(context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: 1, Name: "Tools", Slug: "tools"}}, nil
}

func (stubCategoryService) Products(_ context.Context, slug string, _, _ int) (*domain.Category, *productrepo.Page, error) {
	if slug != "tools" {
		return nil, nil, domain.NotFound("category.products", "category", slug)
	}
	return &domain.Category{ID: 1, Slug: slug}, &productrepo.Page{Items: []domain.Product{}}, nil
}

type stubCartService struct {
	visitors []domain.Visitor
	merged   []string
	addErr   error
}

func (s *stubCartService) seen(v domain.Visitor) *domain.CartSnapshot {
	s.visitors = append(s.visitors, v)
	return &domain.CartSnapshot{Items: []domain.SnapshotLine{}, Total: decimal.Zero}
}

func (s *stubCartService) Get(_ context.Context, v domain.Visitor) (*domain.CartSnapshot, error) {
	return s.seen(v), nil
}

func (s *stubCartService) AddItem(_ context.Context, v domain.Visitor, _ int64, _ int) (*domain.CartSnapshot, error) {
	return s.seen(v), s.addErr
}

func (s *stubCartService) UpdateItem(_ context.Context, v domain.Visitor, _ string, _ int) (*domain.CartSnapshot, error) {
	return s.seen(v), nil
}

func (s *stubCartService) RemoveItem(_ context.Context, v domain.Visitor, _ string) (*domain.CartSnapshot, error) {
	return s.seen(v), nil
}

func (s *stubCartService) ItemCount(_ context.Context, v domain.Visitor) (int, error) {
	s.seen(v)
	return 3, nil
}

func (s *stubCartService) Clear(_ context.Context, v domain.Visitor) error {
	s.seen(v)
	return nil
}

func (s *stubCartService) MergeSession(_ context.Context, sessionID, customerID string) (cartsvc.MergeResult, error) {
	s.merged = append(s.merged, sessionID+"->"+customerID)
	return cartsvc.MergeResult{Merged: 2}, nil
}

type stubOrderService struct {
	order *domain.Order
	err   error
}

func (s *stubOrderService) PlaceOrder(context.Context, domain.Visitor, ordersvc.PlaceOrderInput) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) Get(context.Context, domain.Visitor, int64) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) ListForCustomer(context.Context, string) ([]domain.Order, error) {
	return []domain.Order{}, nil
}

type stubCustomerService struct {
	customer *domain.Customer
	loginErr error
	revoked  []string
	filter   custrepo.ListFilter
	deleted  []string
}

func (s *stubCustomerService) Signup(context.Context, customersvc.SignupInput) (*domain.Customer, error) {
	return s.customer, nil
}

func (s *stubCustomerService) Login(context.Context, string, string) (*domain.Customer, customersvc.Tokens, error) {
	if s.loginErr != nil {
		return nil, customersvc.Tokens{}, s.loginErr
	}
	return s.customer, customersvc.Tokens{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600}, nil
}

func (s *stubCustomerService) Refresh(context.Context, string) (customersvc.Tokens, error) {
	return customersvc.Tokens{AccessToken: "access-2"}, nil
}

func (s *stubCustomerService) Logout(_ context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return nil
}

func (s *stubCustomerService) LookupByToken(_ context.Context, token string) (*domain.Customer, error) {
	if token != "access" {
		return nil, domain.WrapError(customersvc.ErrInvalidToken, domain.EUNAUTHORIZED, "lookup", "Unauthenticated.")
	}
	return s.customer, nil
}

func (s *stubCustomerService) Get(context.Context, string) (*domain.Customer, error) {
	return s.customer, nil
}

func (s *stubCustomerService) List(_ context.Context, f custrepo.ListFilter) (*custrepo.Page, error) {
	s.filter = f
	return &custrepo.Page{Items: []domain.Customer{*s.customer}, CurrentPage: 1, LastPage: 1, PerPage: custrepo.DefaultPerPage, Total: 1}, nil
}

func (s *stubCustomerService) Delete(_ context.Context, id string) error {
	if id != s.customer.ID {
		return domain.NotFound("customer.delete", "customer", id)
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type stubSessions struct {
	destroyed []string
}

func (s *stubSessions) Destroy(_ context.Context, sessionID string) error {
	s.destroyed = append(s.destroyed, sessionID)
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type harness struct {
	router    *gin.Engine
	products  *stubProductService
	carts     *stubCartService
	orders    *stubOrderService
	customers *stubCustomerService
	sessions  *stubSessions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{
		products:  &stubProductService{product: &domain.Product{ID: 7, Name: "Hammer", Price: decimal.RequireFromString("9.99")}},
		carts:     &stubCartService{},
		orders:    &stubOrderService{order: &domain.Order{ID: 1, OrderNumber: "ORD-20240305-000001"}},
		customers: &stubCustomerService{customer: &domain.Customer{ID: "cust-1", Email: "ada@example.com"}},
		sessions:  &stubSessions{},
	}
	reg := prometheus.NewRegistry()
	router, err := buildRouter(nil, Deps{
		Products:   h.products,
		Categories: stubCategoryService{},
		Carts:      h.carts,
		Orders:     h.orders,
		Customers:  h.customers,
		Sessions:   h.sessions,
		Cookie:     CookieConfig{Name: "storefront_session"},
		Metrics:    telemetry.NewHTTPMetrics("test", reg),
		Gatherer:   reg,
		Ready:      map[string]Pinger{"db": fakePinger{}},
	})
	require.NoError(t, err)
	h.router = router
	return h
}

func (h *harness) do(method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(name, value string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	var last *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "storefront_session" {
			last = c
		}
	}
	if last == nil {
		t.Fatalf("no session cookie in response")
	}
	return last
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestBuildRouterRequiresServices(t *testing.T) {
	_, err := buildRouter(nil, Deps{})
	assert.Error(t, err)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/readyz", "").Code)

	h.do(http.MethodGet, "/products", "")
	rec := h.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",path="/products",status="200"} 1`)
}

func TestReadyReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/readyz", readyHandler(map[string]Pinger{"redis": fakePinger{err: errors.New("down")}}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis not reachable")
}

func TestAnonymousVisitorGetsSessionCookie(t *testing.T) {
	h := newHarness(t)

	first := h.do(http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, first.Code)
	cookie := sessionCookie(t, first)
	assert.True(t, cookie.HttpOnly)
	assert.Len(t, cookie.Value, 43)

	second := h.do(http.MethodGet, "/cart/count", "", withCookie(cookie.Name, cookie.Value))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, float64(3), decode(t, second)["count"])

	require.Len(t, h.carts.visitors, 2)
	assert.Equal(t, cookie.Value, h.carts.visitors[0].SessionID)
	assert.Equal(t, cookie.Value, h.carts.visitors[1].SessionID)
	assert.False(t, h.carts.visitors[1].Authenticated())
}

func TestForgedSessionCookieIsReplaced(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/cart", "", withCookie("storefront_session", "forged"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "forged", sessionCookie(t, rec).Value)
	assert.NotEqual(t, "forged", h.carts.visitors[0].SessionID)
}

func TestBearerTokenAuthenticates(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/cart", "", bearer("access"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.carts.visitors, 1)
	assert.True(t, h.carts.visitors[0].Authenticated())
	assert.Equal(t, "cust-1", h.carts.visitors[0].CustomerID)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/cart", "", bearer("bogus")).Code)
}

func TestMeRequiresCustomer(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/me/orders", "").Code)

	rec := h.do(http.MethodGet, "/me", "", bearer("access"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ada@example.com")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestLoginMergesSessionCart(t *testing.T) {
	h := newHarness(t)
	anon := h.do(http.MethodGet, "/cart", "")
	sid := sessionCookie(t, anon).Value

	rec := h.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"Abcdefg1"}`, withCookie("storefront_session", sid))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "access", body["access_token"])
	assert.Equal(t, map[string]any{"merged": float64(2), "skipped": float64(0)}, body["cart_merge"])
	assert.Equal(t, []string{sid + "->cust-1"}, h.carts.merged)
}

func TestLoginFailureIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	h.customers.loginErr = domain.WrapError(customersvc.ErrInvalidCredentials, domain.EUNAUTHORIZED, "customer.login", "These credentials do not match our records.")

	rec := h.do(http.MethodPost, "/auth/login", `{"email":"x@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "These credentials do not match our records.", decode(t, rec)["message"])
	assert.Empty(t, h.carts.merged)
}

func TestLogoutRevokesTokenAndDestroysSession(t *testing.T) {
	h := newHarness(t)
	sid := sessionCookie(t, h.do(http.MethodGet, "/cart", "")).Value

	rec := h.do(http.MethodPost, "/auth/logout", "", bearer("access"), withCookie("storefront_session", sid))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"access"}, h.customers.revoked)
	assert.Equal(t, []string{sid}, h.sessions.destroyed)
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", domain.Validation("op", map[string]string{"quantity": "is invalid"}), http.StatusUnprocessableEntity},
		{"not found", domain.NotFound("op", "product", 1), http.StatusNotFound},
		{"bare not found", domain.ErrNotFound, http.StatusNotFound},
		{"empty cart", domain.EmptyCart("op"), http.StatusConflict},
		{"transaction", domain.TransactionFailed("op", errors.New("deadlock")), http.StatusInternalServerError},
		{"conflict", domain.Conflict("op", "taken"), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.carts.addErr = tc.err
			rec := h.do(http.MethodPost, "/cart/items/7", `{"quantity":1}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "deadlock")
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestValidationErrorsCarryFields(t *testing.T) {
	h := newHarness(t)
	h.orders.err = domain.Validation("order.place", map[string]string{"billing_address.email": "must be a valid email address"})

	rec := h.do(http.MethodPost, "/checkout", `{"payment_method":"paypal"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "The given data was invalid.", body["message"])
	assert.Equal(t, map[string]any{"billing_address.email": "must be a valid email address"}, body["errors"])
}

func TestCheckoutCreatesOrder(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/checkout", `{"payment_method":"paypal"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "ORD-20240305-000001")

	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPost, "/checkout", `{not json`).Code)
}

func TestPathParamsMustBeNumeric(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/products/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/orders/-1", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/cart/items/x", `{"quantity":1}`).Code)
}

func TestCatalogRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/products?category=tools&special_offers=true&search=ham&page=2&per_page=6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, productrepo.ListFilter{CategorySlug: "tools", SpecialOffers: true, Search: "ham", Page: 2, PerPage: 6}, h.products.filter)

	rec = h.do(http.MethodGet, "/products/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"related":[]`)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/products/special-offer", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/categories", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/categories/tools/products", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/categories/nope/products", "").Code)
}

func TestAdminProductRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/admin/products", `{"name":"Hammer","price":"9.99","stock":3,"category_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "9.99", h.products.created.Price.StringFixed(2))
	assert.Equal(t, int64(1), h.products.created.CategoryID)

	assert.Equal(t, http.StatusOK, h.do(http.MethodPut, "/admin/products/7", `{"stock":0}`).Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/admin/products/7", "").Code)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/admin/products", "").Code)
	assert.True(t, h.products.filter.Latest)
	assert.Equal(t, productrepo.AdminPerPage, h.products.filter.PerPage)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/admin/products?per_page=25&page=2", "").Code)
	assert.Equal(t, 25, h.products.filter.PerPage)
	assert.Equal(t, 2, h.products.filter.Page)
}

func TestAdminUserRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/admin/users?search=ada&page=2&per_page=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, custrepo.ListFilter{Search: "ada", Page: 2, PerPage: 5}, h.customers.filter)
	body := decode(t, rec)
	data, ok := body["data"].([]any)
	require.True(t, ok, body)
	require.Len(t, data, 1)
	assert.Equal(t, "ada@example.com", data[0].(map[string]any)["email"])
	assert.Equal(t, float64(1), body["total"])

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/admin/users/cust-1", "").Code)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/admin/users/cust-1", "").Code)
	assert.Equal(t, []string{"cust-1"}, h.customers.deleted)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/admin/users/cust-9", "").Code)
}

func TestBearerTokenParsing(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken(""))
}
