package transport

import (
	"github.com/eventpro/booking-api/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

func InitRoutes(eventHandler *EventHandler, bookingHandler *BookingHandler, userHandler *UserHandler, auth *middleware.Auth) *gin.Engine {

	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30))

	// API routes
	api := router.Group("/api/v1")
	{
		// Public catalog routes
		events := api.Group("/events")
		{
			events.GET("", eventHandler.GetActiveEvents)
			events.GET("/:id", eventHandler.GetEvent)
			events.GET("/:id/availability", eventHandler.GetAvailability)
		}

		// Authenticated routes
		authorized := api.Group("")
		authorized.Use(auth.Authenticate())
		{
			authorized.GET("/me", userHandler.GetMe)

			bookings := authorized.Group("/bookings")
			{
				bookings.POST("/events/:id/reserve", bookingHandler.Reserve)
				bookings.GET("", bookingHandler.GetMyBookings)
				bookings.GET("/:id", bookingHandler.GetBooking)
				bookings.POST("/:id/cancel", bookingHandler.Cancel)
			}

			// Admin routes
			admin := authorized.Group("/admin")
			admin.Use(auth.RequireAdmin())
			{
				admin.GET("/events", eventHandler.ListEvents)
				admin.POST("/events", eventHandler.CreateEvent)
				admin.PUT("/events/:id", eventHandler.UpdateEvent)
				admin.DELETE("/events/:id", eventHandler.DeactivateEvent)
				admin.GET("/events/:id/stats", eventHandler.GetEventStats)
				admin.GET("/events/:id/bookings", bookingHandler.GetEventBookings)
				admin.GET("/bookings", bookingHandler.GetAllBookings)
				admin.GET("/bookings/recent", bookingHandler.GetRecentBookings)
				admin.GET("/users", userHandler.GetAllUsers)
				admin.PUT("/users/:id/role", userHandler.UpdateRole)
			}
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return router
}
