// Package sandbox is a reference implementation of the storefront HTTP API used
// for local development and end-to-end tests of the client packages.
package sandbox

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

const userKey = "userID"

// Config groups dependencies for the sandbox API.
type Config struct {
	Orders      *orders.Store
	Idempotency *idempotency.Store
	Publisher   *aws.Publisher // nil disables order events
	Carts       CartRepository
	Catalog     *Catalog
	Accounts    *Accounts

	PaymentKey    string
	PaymentSecret string
	Currency      string
}

// Server serves the storefront API.
type Server struct {
	orders     *orders.Store
	idemp      *idempotency.Store
	publisher  *aws.Publisher
	carts      CartRepository
	catalog    *Catalog
	accounts   *Accounts
	validate   *validatorv10.Validate
	logger     *log.Entry
	paymentKey string
	secret     string
	currency   string

	// cartMu serializes read-modify-write of carts.
	cartMu sync.Mutex
}

func New(cfg Config) *Server {
	s := &Server{
		orders:     cfg.Orders,
		idemp:      cfg.Idempotency,
		publisher:  cfg.Publisher,
		carts:      cfg.Carts,
		catalog:    cfg.Catalog,
		accounts:   cfg.Accounts,
		validate:   validation.New(),
		logger:     log.WithField("component", "sandbox"),
		paymentKey: cfg.PaymentKey,
		secret:     cfg.PaymentSecret,
		currency:   cfg.Currency,
	}
	if s.carts == nil {
		s.carts = NewMemoryCarts()
	}
	if s.catalog == nil {
		s.catalog = DefaultCatalog()
	}
	if s.accounts == nil {
		s.accounts = NewAccounts()
	}
	if s.currency == "" {
		s.currency = "INR"
	}
	return s
}

// NewRouter returns a gin engine with health, request logging and all API routes.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.Register(r)
	return r
}

// Register mounts the API under /api.
func (s *Server) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/auth/login", s.login)
	api.GET("/products", s.listProducts)
	api.GET("/products/:id", s.getProduct)
	api.GET("/shipping-methods", s.listShippingMethods)

	authed := api.Group("", s.requireUser)
	authed.GET("/cart", s.getCart)
	authed.DELETE("/cart", s.clearCart)
	authed.POST("/cart/items", s.addItem)
	authed.PUT("/cart/items/:itemId", s.updateItem)
	authed.DELETE("/cart/items/:itemId", s.removeItem)
	authed.POST("/cart/coupon", s.applyCoupon)
	authed.DELETE("/cart/coupon", s.removeCoupon)
	authed.PUT("/cart/shipping", s.applyShipping)

	authed.GET("/users/me", s.getProfile)
	authed.POST("/users/me/addresses", s.createAddress)

	authed.POST("/orders", s.createOrder)
	authed.GET("/orders", s.listOrders)
	authed.GET("/orders/:id", s.getOrder)

	authed.POST("/payments/session", s.createPaymentSession)
	authed.POST("/payments/verify", s.verifyPayment)
}

func (s *Server) requireUser(c *gin.Context) {
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if token == "" {
		fail(c, http.StatusUnauthorized, "unauthorized", "Please sign in to continue")
		return
	}
	id, ok := s.accounts.UserID(token)
	if !ok {
		fail(c, http.StatusUnauthorized, "unauthorized", "Your session has expired. Please sign in again.")
		return
	}
	c.Set(userKey, id)
	c.Next()
}

func userID(c *gin.Context) string { return c.GetString(userKey) }

// fail aborts with the error envelope the client understands.
func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set("X-Request-Id", reqID)
		}
		c.Header("X-Request-Id", reqID)

		c.Next()

		entry := logger.WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": reqID,
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Debug("request served")
	}
}
