package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/fieldsentry/backend/internal/alerting"
	"github.com/fieldsentry/backend/internal/broadcast"
	"github.com/fieldsentry/backend/internal/config"
	"github.com/fieldsentry/backend/internal/db"
	"github.com/fieldsentry/backend/internal/http/handlers"
	"github.com/fieldsentry/backend/internal/http/middleware"
	"github.com/fieldsentry/backend/internal/presence"
	"github.com/fieldsentry/backend/internal/report"

	_ "github.com/fieldsentry/backend/docs"
)

func Router(cfg config.Config, store *db.Store, tracker *presence.Tracker, reports *report.Generator, hub *broadcast.Hub, queue alerting.Queue, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Observer-Id", "X-Observer-Role", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Tracker:   tracker,
		Reports:   reports,
		Hub:       hub,
		Queue:     queue,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.Use(middleware.Identity())
	{
		api.GET("/events", h.ListEvents)
		api.GET("/events/:id", h.GetEvent)
		api.GET("/events/:id/officers/:officerId/telemetry", h.TrackingHistory)
		api.GET("/events/:id/report", h.GetReport)
		api.GET("/reports", h.ListReports)
		api.GET("/assignments/current", h.CurrentAssignment)

		api.POST("/events/:id/check-in", h.CheckIn)
		api.POST("/events/:id/check-out", h.CheckOut)
		api.POST("/events/:id/pings", h.SubmitPing)
		api.POST("/events/:id/emergency", h.TriggerEmergency)
	}

	supervise := api.Group("")
	supervise.Use(middleware.RequireRole(middleware.RoleSupervisor))
	{
		supervise.POST("/events", h.CreateEvent)
		supervise.PATCH("/events/:id/status", h.UpdateEventStatus)
		supervise.POST("/events/:id/roster", h.AddRoster)
		supervise.POST("/events/:id/roster/import", h.ImportRoster)
		supervise.POST("/events/:id/report", h.GenerateReport)
	}

	ws := r.Group("/ws")
	ws.Use(middleware.Identity())
	ws.GET("", h.Stream)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
