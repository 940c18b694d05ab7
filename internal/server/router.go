// Package server wires the HTTP routes.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/lingo-service/internal/auth"
	"github.com/yourusername/lingo-service/internal/chat"
	"github.com/yourusername/lingo-service/internal/config"
	"github.com/yourusername/lingo-service/internal/handlers"
	"github.com/yourusername/lingo-service/internal/middleware"
	"github.com/yourusername/lingo-service/internal/repository"
	"github.com/yourusername/lingo-service/internal/services"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Config *config.Config
	Store  repository.Store
	Issuer *auth.Issuer
	Chat   chat.Provider
	// Webhooks verifies provider webhooks; nil disables the endpoint.
	Webhooks chat.WebhookVerifier
	// RateLimiter counts auth attempts; nil disables rate limiting.
	RateLimiter middleware.Counter
	Logger      *slog.Logger
}

// NewRouter builds the gin engine with every route.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authService := services.NewAuthService(d.Store, d.Issuer, d.Chat, logger)
	friendService := services.NewFriendService(d.Store, d.Store)

	authHandler := handlers.NewAuthHandler(authService, handlers.CookieConfig{
		Name:   d.Config.Auth.CookieName,
		Secure: d.Config.IsProduction(),
		MaxAge: d.Issuer.TTL(),
	})
	friendHandler := handlers.NewFriendHandler(friendService)
	chatHandler := handlers.NewChatHandler(d.Chat, d.Webhooks, friendService, d.Config.Server.AllowedOrigins, logger)

	protect := middleware.ProtectRoute(authService, authHandler.CookieName())
	limit := middleware.RateLimit(d.RateLimiter, middleware.RateLimitConfig{
		RequestsPerMinute: d.Config.Redis.RequestsPerMinute,
		BurstSize:         d.Config.Redis.BurstSize,
	})

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logging(logger))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Lingo API is running",
		})
	})

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/signup", limit, authHandler.Signup)
			authRoutes.POST("/login", limit, authHandler.Login)
			authRoutes.POST("/logout", authHandler.Logout)

			authRoutes.POST("/onboarding", protect, authHandler.Onboard)
			authRoutes.GET("/me", protect, authHandler.Me)
		}

		friends := api.Group("/friends")
		friends.Use(protect)
		{
			friends.GET("", friendHandler.GetFriends)
			friends.GET("/pending", friendHandler.GetPendingRequests)
			friends.POST("/request", friendHandler.SendFriendRequest)
			friends.POST("/accept", friendHandler.AcceptFriendRequest)
			friends.POST("/reject", friendHandler.RejectFriendRequest)
		}

		chatRoutes := api.Group("/chat")
		{
			chatRoutes.GET("/token", protect, chatHandler.Token)
			chatRoutes.GET("/unread", protect, chatHandler.Unread)
			chatRoutes.POST("/webhook", chatHandler.Webhook)
		}
	}

	return router
}

// NewHandler returns the router behind the CORS handler.
func NewHandler(d Deps) http.Handler {
	return middleware.CORS(d.Config.Server.AllowedOrigins)(NewRouter(d))
}
