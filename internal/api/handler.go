// Package api exposes the Brain platform over HTTP and WebSocket with
// gin-gonic/gin, wiring thin handlers around internal/app.App the way
// the reference service's internal/api.Server wires handlers around
// its engine/order/balance collaborators: Server holds every
// dependency the routes need and owns middleware registration order.
package api

import (
	"net/http"
	"time"

	"brain-core/internal/app"
	"brain-core/internal/monitor"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the Brain composition root.
type Server struct {
	Router  *gin.Engine
	App     *app.App
	Metrics *monitor.SystemMetrics

	JWTSecret string
}

// NewServer builds the gin engine, registers the middleware stack in
// the same order the reference service uses (Recovery, RequestID,
// RequestLogger, RateLimit, Timeout, CORS), and mounts every route
// group.
func NewServer(a *app.App, metrics *monitor.SystemMetrics) *Server {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		App:       a,
		Metrics:   metrics,
		JWTSecret: a.Config.JWTSecretKey,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws/market/stream", s.websocket)

	api := s.Router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
			auth.POST("/send-otp", s.sendOTP)
			auth.POST("/verify-otp", s.verifyOTP)
		}

		admin := api.Group("/admin")
		admin.Use(AuthMiddleware(s.JWTSecret), s.RequireAdmin())
		{
			admin.GET("/settings", s.getAdminSettings)
			admin.PUT("/settings", s.updateAdminSettings)
			admin.GET("/metrics-summary", s.getMetricsSummary)
			admin.GET("/royalties", s.adminListRoyalties)
			admin.PUT("/royalties/:id", s.adminOverrideRoyalty)
			admin.POST("/billing/run", s.adminRunBilling)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/me", s.getMe)

			protected.POST("/strategies", s.createStrategy)
			protected.GET("/strategies", s.listStrategies)
			protected.GET("/strategies/:id", s.getStrategy)
			protected.GET("/strategies/:id/signal", s.getStrategySignal)

			protected.POST("/trades", s.createTrade)
			protected.POST("/trades/close", s.closeTrade)
			protected.GET("/trades", s.listTrades)

			protected.GET("/market/price", s.getMarketPrice)
			protected.GET("/market/candles", s.getMarketCandles)
			protected.GET("/market/regime", s.getMarketRegime)

			protected.GET("/royalties/mine", s.myRoyalties)
			protected.GET("/royalties/billing-status", s.myBillingStatus)

			protected.POST("/groups", s.createGroup)
			protected.POST("/groups/join", s.joinGroup)
			protected.POST("/groups/:id/messages", s.postGroupMessage)
			protected.GET("/groups/:id/messages", s.listGroupMessages)
			protected.DELETE("/groups/:id/messages/:messageId", s.deleteGroupMessage)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
