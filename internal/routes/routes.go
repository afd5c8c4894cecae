package routes

import (
	"notifyd/internal/auth"
	"notifyd/internal/handlers"

	"github.com/labstack/echo/v4"
)

func SetupRoutes(api *echo.Group) {
	// Public routes
	api.GET("/health", handlers.HealthCheck)

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Use(auth.RateLimitMiddleware)
	authGroup.POST("/signup", handlers.Signup)
	authGroup.POST("/login", handlers.Login)

	// Internal service-to-service routes (no session; shared token)
	internal := api.Group("/internal")
	internal.Use(handlers.RequireInternalToken)
	internal.POST("/emit", handlers.EmitNotification)
	internal.POST("/broadcast", handlers.BroadcastNotification)

	// Protected routes
	api.Use(auth.JWTMiddleware)

	api.GET("/csrf", handlers.GetCsrfToken)

	notifications := api.Group("/notifications")
	notifications.GET("", handlers.ListNotifications)
	notifications.GET("/unread-count", handlers.GetUnreadCount)
	notifications.GET("/stream", handlers.StreamFeed)
	notifications.GET("/stream/unread", handlers.StreamUnread)
	notifications.POST("/:id/read", handlers.MarkRead, handlers.RequireCsrf)
	notifications.POST("/read-all", handlers.MarkAllRead, handlers.RequireCsrf)
	notifications.POST("/preferences", handlers.SetPreference, handlers.RequireCsrf)

	subscriptions := api.Group("/subscriptions")
	subscriptions.POST("", handlers.Subscribe, handlers.RequireCsrf)
	subscriptions.POST("/unsubscribe", handlers.Unsubscribe, handlers.RequireCsrf)

	devices := api.Group("/devices")
	devices.POST("", handlers.RegisterDevice, handlers.RequireCsrf)
}
