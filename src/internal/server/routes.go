package server

import (
	"time"

	"parking-svc/src/internal/dependency"
	"parking-svc/src/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func SetupRoutes(deps *dependency.Manager) {
	router := deps.Router
	router.Use(middleware.RequestID(), middleware.AccessLog(), middleware.EnableCORS)

	setupHealthEndpoint(deps)
	setupPublicRoutes(router, deps)
	setupParkingRoutes(router, deps)
}

func setupHealthEndpoint(deps *dependency.Manager) {
	router := deps.Router
	cfg := deps.Config

	router.GET("/health", func(c *gin.Context) {
		log.Debug("Health check endpoint requested")

		c.JSON(200, gin.H{
			"status":    "ok",
			"service":   cfg.App.Name,
			"version":   cfg.App.Version,
			"mongodb":   mongoStatus(deps, c),
			"redis":     redisStatus(deps, c),
			"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	})

	router.GET("/health/detailed", func(c *gin.Context) {
		log.Debug("Detailed health check endpoint requested")

		c.JSON(200, gin.H{
			"status":  "operational",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
			"components": gin.H{
				"database": gin.H{
					"driver":  cfg.Database.Driver,
					"mongodb": mongoStatus(deps, c),
					"redis":   redisStatus(deps, c),
				},
				"queue": gin.H{
					"rabbitmq": rabbitStatus(deps),
				},
			},
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
}

func setupPublicRoutes(router *gin.Engine, deps *dependency.Manager) {
	router.GET("/api/v1/status", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"api_version": "v1",
			"status":      "operational",
			"service":     deps.Config.App.Name,
		})
	})
}

func setupParkingRoutes(router *gin.Engine, deps *dependency.Manager) {
	handler := deps.ParkingHandler

	api := router.Group("/api/v1")
	if rl := deps.Config.RateLimit; rl.Enabled {
		api.Use(middleware.RateLimiter(rate.Limit(rl.RequestsPerSecond), rl.Burst))
	}
	{
		api.POST("/vehicle",
			middleware.RouteName("admitVehicle"),
			handler.Admit)

		api.GET("/vehicles",
			middleware.RouteName("listVehicles"),
			handler.ListAll)

		api.PUT("/vehicle/:id",
			middleware.RouteName("updateVehicle"),
			handler.Update)

		api.DELETE("/vehicle/:id",
			middleware.RouteName("removeVehicle"),
			handler.Remove)

		api.POST("/close-day",
			middleware.RouteName("closeDay"),
			handler.CloseDay)

		api.GET("/occupancy",
			middleware.RouteName("occupancy"),
			handler.Occupancy)
	}
}

func mongoStatus(deps *dependency.Manager, c *gin.Context) string {
	if deps.Mongodb == nil {
		return "disabled"
	}
	if err := deps.Mongodb.Client.Ping(c.Request.Context(), nil); err != nil {
		return "error: " + err.Error()
	}
	return "connected"
}

func redisStatus(deps *dependency.Manager, c *gin.Context) string {
	if deps.Redis == nil {
		return "disabled"
	}
	if err := deps.Redis.Client.Ping(c.Request.Context()).Err(); err != nil {
		return "error: " + err.Error()
	}
	return "connected"
}

func rabbitStatus(deps *dependency.Manager) string {
	if deps.RabbitMQ == nil {
		return "disabled"
	}
	if deps.RabbitMQ.Conn.IsClosed() {
		return "disconnected"
	}
	return "connected"
}
