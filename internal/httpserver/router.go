package httpserver

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"chatcommerce/internal/conversation"
	"chatcommerce/internal/domain"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type eventHandler interface {
	Handle(ctx context.Context, env conversation.Envelope) error
}

type orderService interface {
	ConfirmOrder(ctx context.Context, customer, orderID string, pm domain.PaymentMethod) (string, error)
	UpdateOrderStatusFromCommand(ctx context.Context, text string) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, branch string) ([]domain.Order, error)
}

type discountService interface {
	Get(ctx context.Context) (float64, error)
	Set(ctx context.Context, percentage float64) error
	Clear(ctx context.Context) error
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Store     pinger
	Events    eventHandler
	Orders    orderService
	Discounts discountService
}

type Config struct {
	// VerifyToken answers the chat platform's subscription handshake.
	VerifyToken          string
	PaymentWebhookSecret string
	// AdminAPIKey guards /admin; an empty key disables the admin routes.
	AdminAPIKey string
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, deps Deps, cfg Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Store))

	router.GET("/webhook", verifyWebhookHandler(cfg.VerifyToken))
	router.POST("/webhook", receiveWebhookHandler(logger, deps.Events))
	router.POST("/payments/razorpay/webhook", razorpayWebhookHandler(logger, deps.Orders, cfg.PaymentWebhookSecret))

	if cfg.AdminAPIKey == "" {
		logger.Printf("ADMIN_API_KEY not set, admin routes disabled")
		return router
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	admin := router.Group("/admin")
	admin.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", apiKeyHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}), apiKeyMiddleware(cfg.AdminAPIKey))

	admin.GET("/discount", getDiscountHandler(deps.Discounts))
	admin.PUT("/discount", putDiscountHandler(deps.Discounts))
	admin.DELETE("/discount", deleteDiscountHandler(deps.Discounts))
	admin.POST("/orders/status", orderStatusHandler(deps.Orders))
	admin.GET("/orders", listOrdersHandler(deps.Orders))
	admin.GET("/orders/:id", getOrderHandler(deps.Orders))

	return router
}
