package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/logging"
	custrepo "storefront/internal/repository/customer"
	productrepo "storefront/internal/repository/product"
	cartsvc "storefront/internal/service/cart"
	customersvc "storefront/internal/service/customer"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	"storefront/internal/telemetry"
)

type productService interface {
	List(ctx context.Context, f productrepo.ListFilter) (*productrepo.Page, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	Related(ctx context.Context, p domain.Product) ([]domain.Product, error)
	SpecialOffer(ctx context.Context) (*domain.Product, error)
	Create(ctx context.Context, in productsvc.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id int64, patch productsvc.ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

type categoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
	Products(ctx context.Context, slug string, page, perPage int) (*domain.Category, *productrepo.Page, error)
}

type cartService interface {
	Get(ctx context.Context, v domain.Visitor) (*domain.CartSnapshot, error)
	AddItem(ctx context.Context, v domain.Visitor, productID int64, quantity int) (*domain.CartSnapshot, error)
	UpdateItem(ctx context.Context, v domain.Visitor, lineID string, quantity int) (*domain.CartSnapshot, error)
	RemoveItem(ctx context.Context, v domain.Visitor, lineID string) (*domain.CartSnapshot, error)
	ItemCount(ctx context.Context, v domain.Visitor) (int, error)
	Clear(ctx context.Context, v domain.Visitor) error
	MergeSession(ctx context.Context, sessionID, customerID string) (cartsvc.MergeResult, error)
}

type orderService interface {
	PlaceOrder(ctx context.Context, v domain.Visitor, in ordersvc.PlaceOrderInput) (*domain.Order, error)
	Get(ctx context.Context, v domain.Visitor, orderID int64) (*domain.Order, error)
	ListForCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
}

type customerService interface {
	Signup(ctx context.Context, in customersvc.SignupInput) (*domain.Customer, error)
	Login(ctx context.Context, email, password string) (*domain.Customer, customersvc.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (customersvc.Tokens, error)
	Logout(ctx context.Context, accessToken string) error
	LookupByToken(ctx context.Context, token string) (*domain.Customer, error)
	Get(ctx context.Context, id string) (*domain.Customer, error)
	List(ctx context.Context, f custrepo.ListFilter) (*custrepo.Page, error)
	Delete(ctx context.Context, id string) error
}

type sessionDestroyer interface {
	Destroy(ctx context.Context, sessionID string) error
}

// CookieConfig controls the anonymous session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Deps carries everything the router needs. Metrics, Gatherer and Ready
// are optional.
type Deps struct {
	Products    productService
	Categories  categoryService
	Carts       cartService
	Orders      orderService
	Customers   customerService
	Sessions    sessionDestroyer
	Cookie      CookieConfig
	CORSOrigins []string
	Metrics     *telemetry.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Ready       map[string]Pinger
}

func (d Deps) validate() error {
	switch {
	case d.Products == nil, d.Categories == nil:
		return errors.New("httpserver: catalog services are required")
	case d.Carts == nil, d.Orders == nil:
		return errors.New("httpserver: cart and order services are required")
	case d.Customers == nil, d.Sessions == nil:
		return errors.New("httpserver: customer service and session store are required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "storefront_session"
	}

	router := gin.New()
	router.Use(logging.GinMiddleware(logger), gin.Recovery())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	if len(deps.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = deps.CORSOrigins
		cfg.AllowCredentials = true
		cfg.AddAllowHeaders("Authorization")
		router.Use(cors.New(cfg))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	h := &handlers{deps: deps, logger: logger}
	api := router.Group("/", visitorMiddleware(deps.Customers, deps.Cookie))

	api.GET("/products", h.listProducts)
	api.GET("/products/special-offer", h.specialOffer)
	api.GET("/products/:id", h.getProduct)
	api.GET("/categories", h.listCategories)
	api.GET("/categories/:slug/products", h.categoryProducts)

	api.GET("/cart", h.getCart)
	api.GET("/cart/count", h.cartCount)
	api.DELETE("/cart", h.clearCart)
	api.POST("/cart/items/:productId", h.addCartItem)
	api.PATCH("/cart/items/:itemId", h.updateCartItem)
	api.DELETE("/cart/items/:itemId", h.removeCartItem)

	api.POST("/checkout", h.checkout)
	api.GET("/orders/:id", h.getOrder)

	api.POST("/auth/signup", h.signup)
	api.POST("/auth/login", h.login)
	api.POST("/auth/refresh", h.refresh)

	me := api.Group("/", requireCustomer())
	me.POST("/auth/logout", h.logout)
	me.GET("/me", h.me)
	me.GET("/me/orders", h.myOrders)

	admin := api.Group("/admin")
	admin.GET("/products", h.adminListProducts)
	admin.POST("/products", h.adminCreateProduct)
	admin.PUT("/products/:id", h.adminUpdateProduct)
	admin.DELETE("/products/:id", h.adminDeleteProduct)
	admin.GET("/users", h.adminListUsers)
	admin.GET("/users/:id", h.adminGetUser)
	admin.DELETE("/users/:id", h.adminDeleteUser)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found."})
	})
	return router, nil
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}
