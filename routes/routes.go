package routes

import (
	"slices"

	"appointment-notifier/config"
	"appointment-notifier/controllers"
	"appointment-notifier/services"
	"appointment-notifier/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func SetupRouter(cfg *config.Config, reminders *services.ReminderService, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	r.Use(config.PerformanceLogger(logger))

	r.GET("/healthz", controllers.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authController := &controllers.AuthController{
		PasswordHash: cfg.Server.AdminPasswordHash,
		JWTSecret:    cfg.Server.JWTSecret,
		TokenTTL:     cfg.Server.JWTExpiry,
	}

	auth := r.Group("/auth")
	{
		auth.POST("/login", authController.Login)

		auth.Use(utils.AuthMiddleware(cfg.Server.JWTSecret))
		auth.GET("/me", authController.Me)
	}

	reminderController := &controllers.ReminderController{Service: reminders}

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware(cfg.Server.JWTSecret))
	{
		api.GET("/appointments/pending", reminderController.GetPendingAppointments)

		reminderRoutes := api.Group("/reminders")
		{
			reminderRoutes.POST("/run", reminderController.RunReminders)
			reminderRoutes.GET("/logs", reminderController.GetReminderLogs)
		}
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
