package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/service"
)

// Services зависимости HTTP-слоя
type Services struct {
	Products *service.ProductService
	Pricing  *service.PricingService
	Carts    *service.CartService
	Orders   *service.OrderService
	Shipping *service.ShippingService
}

type Options struct {
	JWTSecret   string
	AdminAPIKey string
	CORSOrigins []string
	Logger      *zap.Logger
	// Health reports backend readiness for /healthz; nil means always ready.
	Health func(ctx context.Context) error
}

type Server struct {
	engine    *gin.Engine
	products  *service.ProductService
	pricing   *service.PricingService
	carts     *service.CartService
	orders    *service.OrderService
	shipping  *service.ShippingService
	jwtSecret []byte
	adminKey  string
	health    func(ctx context.Context) error
	log       *zap.Logger
}

func NewServer(svc Services, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	// handlers pass *gin.Context down as context.Context
	r.ContextWithFallback = true
	r.Use(requestLogger(log), recovery(log), cors.New(corsConfig(opts.CORSOrigins)))
	s := &Server{
		engine:    r,
		products:  svc.Products,
		pricing:   svc.Pricing,
		carts:     svc.Carts,
		orders:    svc.Orders,
		shipping:  svc.Shipping,
		jwtSecret: []byte(opts.JWTSecret),
		adminKey:  opts.AdminAPIKey,
		health:    opts.Health,
		log:       log,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/healthz", s.healthz)

	api := s.engine.Group("/api", s.identify)
	{
		products := api.Group("/products")
		products.GET("", s.listProducts)
		products.GET(":id", s.getProduct)
		products.POST(":id/quote", s.quoteProduct)
		products.POST("variant-price", s.variantPrice)

		api.GET("/shipping-methods", s.listShippingMethods)

		cart := api.Group("/cart", s.cartSession)
		cart.GET("", s.getCart)
		cart.DELETE("", s.clearCart)
		cart.POST("/items", s.addCartItem)
		cart.PATCH("/items", s.updateCartItem)
		cart.DELETE("/items", s.removeCartItem)
		cart.GET("/ws", s.cartStream)

		orders := api.Group("/orders", s.requireCustomer)
		orders.GET("", s.listOrders)
		orders.POST("", s.cartSession, s.createOrder)
		orders.GET(":id", s.getOrder)
		orders.POST(":id/cancel", s.cancelOrder)

		admin := api.Group("/admin", s.requireAdmin)
		admin.POST("/products", s.createProduct)
		admin.PUT("/products/:id", s.updateProduct)
		admin.DELETE("/products/:id", s.deleteProduct)
		admin.POST("/shipping-methods", s.saveShippingMethod)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY", "X-Cart-Session", "If-Match"},
		ExposeHeaders:    []string{"Content-Length", "ETag", "X-Cart-Session", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /healthz [get]
func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Product handlers
type productReq struct {
	Title      string                      `json:"title"`
	SKU        string                      `json:"sku"`
	Image      string                      `json:"image"`
	Type       domain.ProductType          `json:"type"`
	BasePrice  decimal.Decimal             `json:"basePrice"`
	Variations []domain.VariationAttribute `json:"variations"`
	Variants   []domain.Variant            `json:"variants"`
	Addons     []domain.Addon              `json:"addons"`
}

func (r productReq) toDomain(id string) domain.Product {
	return domain.Product{
		ID:         id,
		Title:      r.Title,
		SKU:        r.SKU,
		Image:      r.Image,
		Type:       r.Type,
		BasePrice:  r.BasePrice,
		Variations: r.Variations,
		Variants:   r.Variants,
		Addons:     r.Addons,
	}
}

// @Summary Create product
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body productReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/admin/products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Create(c, req.toDomain(""))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 404 {object} map[string]string
// @Router /api/products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	p, err := s.products.GetByID(c, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Update product
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Product ID"
// @Param input body productReq true "Product"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/admin/products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Update(c, req.toDomain(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete product
// @Tags admin
// @Security ApiKeyAuth
// @Param id path string true "Product ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/admin/products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	if err := s.products.Delete(c, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List products
// @Tags products
// @Produce json
// @Param q query string false "Title contains"
// @Param type query string false "simple, variable or group"
// @Param min_price query number false "Min base price"
// @Param max_price query number false "Max base price"
// @Success 200 {array} domain.Product
// @Router /api/products [get]
func (s *Server) listProducts(c *gin.Context) {
	var f repository.ProductFilter
	if q := c.Query("q"); q != "" {
		f.NameSubstring = q
	}
	if t := c.Query("type"); t != "" {
		f.Type = domain.ProductType(t)
	}
	if v := c.Query("min_price"); v != "" {
		if x, err := decimal.NewFromString(v); err == nil {
			f.MinPrice = &x
		}
	}
	if v := c.Query("max_price"); v != "" {
		if x, err := decimal.NewFromString(v); err == nil {
			f.MaxPrice = &x
		}
	}
	list, err := s.products.List(c, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Quote unit price for a selection
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param input body service.Selections true "Selection"
// @Success 200 {object} service.Quote
// @Failure 404 {object} map[string]string
// @Router /api/products/{id}/quote [post]
func (s *Server) quoteProduct(c *gin.Context) {
	var sel service.Selections
	if err := c.ShouldBindJSON(&sel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.GetByID(c, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.pricing.ComputeUnitPrice(c, *p, sel))
}

type variantPriceReq struct {
	ProductID            string            `json:"productId"`
	VariationCombination map[string]string `json:"variationCombination"`
}

// @Summary Resolve variant price
// @Tags products
// @Accept json
// @Produce json
// @Param input body variantPriceReq true "Combination"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/products/variant-price [post]
func (s *Server) variantPrice(c *gin.Context) {
	var req variantPriceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json"})
		return
	}
	price, err := s.products.VariantPrice(c, req.ProductID, req.VariationCombination)
	if err != nil {
		status := mapErrorToStatus(err)
		if status >= http.StatusInternalServerError {
			s.fail(c, err)
			return
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "price": price})
}

// Shipping handlers

// @Summary List shipping methods
// @Tags shipping
// @Produce json
// @Success 200 {array} domain.ShippingMethod
// @Router /api/shipping-methods [get]
func (s *Server) listShippingMethods(c *gin.Context) {
	list, err := s.shipping.List(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Create or replace shipping method
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body domain.ShippingMethod true "Shipping method"
// @Success 201 {object} domain.ShippingMethod
// @Failure 400 {object} map[string]string
// @Router /api/admin/shipping-methods [post]
func (s *Server) saveShippingMethod(c *gin.Context) {
	var req domain.ShippingMethod
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := s.shipping.Save(c, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrShippingMethodRequired),
		errors.Is(err, service.ErrInvalidItem),
		errors.Is(err, service.ErrTotalsMismatch),
		errors.Is(err, service.ErrSelectionIncomplete):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrCartBusy):
		return http.StatusConflict
	case errors.Is(err, repository.ErrVersionConflict):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// fail пишет ответ об ошибке; детали внутренних ошибок остаются в логе
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := mapErrorToStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	body := gin.H{"error": err.Error()}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		body["missingFields"] = verr.MissingFields
	}
	c.JSON(status, body)
}
