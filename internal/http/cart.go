package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// cartLineResponse позиция с готовыми ключами идентичности для PATCH/DELETE
type cartLineResponse struct {
	domain.CartLineItem
	VariationsKey string          `json:"variationsKey"`
	AddonsKey     string          `json:"addonsKey"`
	LineTotal     decimal.Decimal `json:"lineTotal"`
}

type cartResponse struct {
	Items     []cartLineResponse `json:"items"`
	Total     decimal.Decimal    `json:"total"`
	ItemCount int                `json:"itemCount"`
	Version   int64              `json:"version"`
}

func newCartResponse(c domain.Cart) cartResponse {
	items := make([]cartLineResponse, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartLineResponse{
			CartLineItem:  it,
			VariationsKey: it.VariationsKey(),
			AddonsKey:     it.AddonsKey(),
			LineTotal:     it.LineTotal(),
		})
	}
	return cartResponse{Items: items, Total: c.Total, ItemCount: c.ItemCount, Version: c.Version}
}

func (s *Server) writeCart(c *gin.Context, status int, cart domain.Cart) {
	c.Header("ETag", strconv.Quote(strconv.FormatInt(cart.Version, 10)))
	c.JSON(status, newCartResponse(cart))
}

// mutateOptions переводит If-Match в ожидаемую версию корзины
func mutateOptions(c *gin.Context) ([]service.MutateOption, bool) {
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	if raw == "" || raw == "*" {
		return nil, true
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return []service.MutateOption{service.IfVersion(v)}, true
}

func (s *Server) withOptions(c *gin.Context) ([]service.MutateOption, bool) {
	opts, ok := mutateOptions(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid If-Match header"})
	}
	return opts, ok
}

// @Summary Get cart
// @Tags cart
// @Produce json
// @Success 200 {object} cartResponse
// @Router /api/cart [get]
func (s *Server) getCart(c *gin.Context) {
	cart, err := s.carts.GetCart(c, cartID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeCart(c, http.StatusOK, cart)
}

type addCartItemReq struct {
	ProductID  string            `json:"productId"`
	Quantity   int               `json:"quantity"`
	Variations map[string]string `json:"variations"`
	Addons     map[string]int    `json:"addons"`
}

// @Summary Add product to cart
// @Description Price, title and addon prices are taken from the catalog.
// @Tags cart
// @Accept json
// @Produce json
// @Param If-Match header string false "Expected cart version"
// @Param input body addCartItemReq true "Selection"
// @Success 200 {object} cartResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 412 {object} map[string]string
// @Router /api/cart/items [post]
func (s *Server) addCartItem(c *gin.Context) {
	var req addCartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	opts, ok := s.withOptions(c)
	if !ok {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	sel := service.Selections{Variations: req.Variations, Addons: req.Addons}
	cart, err := s.carts.AddProduct(c, cartID(c), req.ProductID, req.Quantity, sel, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeCart(c, http.StatusOK, cart)
}

type cartLineReq struct {
	ProductID     string `json:"productId"`
	VariationsKey string `json:"variationsKey"`
	AddonsKey     string `json:"addonsKey"`
	Quantity      int    `json:"quantity"`
}

// @Summary Set line quantity
// @Description Quantity 0 or below removes the line.
// @Tags cart
// @Accept json
// @Produce json
// @Param If-Match header string false "Expected cart version"
// @Param input body cartLineReq true "Line and quantity"
// @Success 200 {object} cartResponse
// @Failure 412 {object} map[string]string
// @Router /api/cart/items [patch]
func (s *Server) updateCartItem(c *gin.Context) {
	var req cartLineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	opts, ok := s.withOptions(c)
	if !ok {
		return
	}
	cart, err := s.carts.UpdateCartItemQuantity(c, cartID(c), req.ProductID, req.VariationsKey, req.AddonsKey, req.Quantity, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeCart(c, http.StatusOK, cart)
}

// @Summary Remove line
// @Tags cart
// @Accept json
// @Produce json
// @Param If-Match header string false "Expected cart version"
// @Param input body cartLineReq true "Line"
// @Success 200 {object} cartResponse
// @Failure 412 {object} map[string]string
// @Router /api/cart/items [delete]
func (s *Server) removeCartItem(c *gin.Context) {
	var req cartLineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	opts, ok := s.withOptions(c)
	if !ok {
		return
	}
	cart, err := s.carts.RemoveFromCart(c, cartID(c), req.ProductID, req.VariationsKey, req.AddonsKey, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeCart(c, http.StatusOK, cart)
}

// @Summary Clear cart
// @Tags cart
// @Produce json
// @Param If-Match header string false "Expected cart version"
// @Success 200 {object} cartResponse
// @Router /api/cart [delete]
func (s *Server) clearCart(c *gin.Context) {
	opts, ok := s.withOptions(c)
	if !ok {
		return
	}
	cart, err := s.carts.ClearCart(c, cartID(c), opts...)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeCart(c, http.StatusOK, cart)
}

// @Summary Cart change stream
// @Description Websocket; sends the current cart, then a snapshot after every change.
// @Tags cart
// @Router /api/cart/ws [get]
func (s *Server) cartStream(c *gin.Context) {
	id := cartID(c)
	current, err := s.carts.GetCart(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	updates, cancel := s.carts.Subscribe(id)
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(cart domain.Cart) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(newCartResponse(cart)); err != nil {
			s.log.Debug("cart stream write", zap.String("cart_id", id), zap.Error(err))
			return false
		}
		return true
	}
	if !send(current) {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case cart, ok := <-updates:
			if !ok || !send(cart) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
