package httpapi

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ctxRequestID  = "request_id"
	ctxCustomerID = "customer_id"
	ctxCartID     = "cart_id"

	cartCookie       = "cart_session"
	cartHeader       = "X-Cart-Session"
	cartCookieMaxAge = 30 * 24 * time.Hour
)

// requestLogger пишет одну строку на запрос в zap
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(ctxRequestID, reqID)
		c.Header("X-Request-ID", reqID)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", reqID),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		log.Error("panic recovered",
			zap.Any("panic", rec),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

// identify принимает необязательный Bearer JWT; sub становится id покупателя.
// Неверный токен даёт 401, запрос без токена считается анонимным.
func (s *Server) identify(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || len(s.jwtSecret) == 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
		return
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	c.Set(ctxCustomerID, claims.Subject)
	c.Next()
}

func (s *Server) requireCustomer(c *gin.Context) {
	if customerID(c) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.Next()
}

func (s *Server) requireAdmin(c *gin.Context) {
	key := c.GetHeader("X-API-KEY")
	if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	c.Next()
}

// cartSession выбирает корзину запроса: у покупателя своя корзина, гостю
// выдаётся cookie. Гостевая корзина переносится в корзину покупателя при входе.
func (s *Server) cartSession(c *gin.Context) {
	guest := c.GetHeader(cartHeader)
	if guest == "" {
		guest, _ = c.Cookie(cartCookie)
	}
	if _, err := uuid.Parse(guest); err != nil {
		guest = ""
	}

	if customer := customerID(c); customer != "" {
		cartID := customerCart(customer)
		if guest != "" {
			if _, err := s.carts.Adopt(c, guestCart(guest), cartID); err != nil {
				s.log.Warn("adopt guest cart", zap.String("customer_id", customer), zap.Error(err))
			} else {
				c.SetCookie(cartCookie, "", -1, "/", "", false, true)
			}
		}
		c.Set(ctxCartID, cartID)
		c.Next()
		return
	}

	if guest == "" {
		guest = uuid.NewString()
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cartCookie, guest, int(cartCookieMaxAge.Seconds()), "/", "", false, true)
	c.Header(cartHeader, guest)
	c.Set(ctxCartID, guestCart(guest))
	c.Next()
}

func customerID(c *gin.Context) string { return c.GetString(ctxCustomerID) }

func cartID(c *gin.Context) string { return c.GetString(ctxCartID) }

func customerCart(id string) string { return "customer:" + id }

func guestCart(id string) string { return "guest:" + id }
