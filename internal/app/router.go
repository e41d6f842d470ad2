package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"transit/internal/handler"
	"transit/internal/logger"
	"transit/internal/middleware"
	"transit/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	JourneyHandler  *handler.JourneyHandler
	PaymentHandler  *handler.PaymentHandler
	ScheduleHandler *handler.ScheduleHandler
	IdempotencyKV   redis.KV
	NewRelicApp     *newrelic.Application
	JWTSecret       string
	CORSOrigins     []string
	Logger          logger.ILogger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(deps.JWTSecret))
	api.Use(middleware.TransactionAttributes())
	if deps.IdempotencyKV != nil {
		api.Use(middleware.IdempotencyMiddleware(deps.IdempotencyKV, deps.Logger))
	}
	{
		journeys := api.Group("/journeys")
		{
			journeys.POST("/book", deps.JourneyHandler.BookJourney)
			journeys.GET("/passenger", deps.JourneyHandler.GetPassengerJourneys)
			journeys.POST("/verify-qr", deps.JourneyHandler.VerifyTicketQR)
			journeys.GET("/:journeyId", deps.JourneyHandler.GetJourneyDetails)
			journeys.POST("/:journeyId/cancel", deps.JourneyHandler.CancelJourney)
			journeys.POST("/:journeyId/verify", deps.JourneyHandler.VerifyJourney)
			journeys.POST("/:journeyId/pay", deps.PaymentHandler.PayJourney)
		}

		schedules := api.Group("/schedules")
		{
			schedules.GET("/:scheduleId/fare", deps.ScheduleHandler.GetFare)
			schedules.POST("/:scheduleId/payments", deps.ScheduleHandler.CreateGroupPayment)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/create-order", deps.PaymentHandler.CreateOrder)
			payments.POST("/capture/:orderId", deps.PaymentHandler.CapturePayment)
			payments.GET("/history", deps.PaymentHandler.GetPaymentHistory)
			payments.GET("/:paymentId", deps.PaymentHandler.GetPaymentDetails)
			payments.GET("/:paymentId/receipt", deps.PaymentHandler.GetPaymentReceipt)
			payments.POST("/:paymentId/refund", deps.PaymentHandler.ProcessRefund)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
