package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sk-governance-api/internal/handler"
	"github.com/noah-isme/sk-governance-api/internal/middleware"
	"github.com/noah-isme/sk-governance-api/internal/models"
)

type handlers struct {
	terms      *handler.TermHandler
	statistics *handler.StatisticsHandler
	metrics    *handler.MetricsHandler
}

type routeOptions struct {
	prefix string
	docs   bool
}

// registerRoutes mounts every endpoint. Reads need any operator role; lifecycle writes
// need ADMIN.
func registerRoutes(r *gin.Engine, h handlers, tokens middleware.TokenValidator, opts routeOptions) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if opts.docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.prefix)
	api.Use(middleware.JWT(tokens), middleware.WithResponseMeta())

	read := api.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff))
	write := api.Group("", middleware.RequireRoles(models.RoleAdmin))

	read.GET("/terms", h.terms.List)
	read.GET("/terms/active", h.terms.GetActive)
	read.GET("/terms/:id", h.terms.Get)
	read.POST("/terms/validate", h.terms.Validate)
	read.GET("/terms/:id/statistics", h.statistics.Statistics)
	read.GET("/terms/:id/vacancies", h.statistics.Vacancies)
	read.GET("/terms/:id/statistics/export", h.statistics.Export)
	read.GET("/barangays", h.statistics.Barangays)
	read.GET("/metrics/summary", h.metrics.Summary)

	write.POST("/terms", h.terms.Create)
	write.PUT("/terms/:id", h.terms.Update)
	write.DELETE("/terms/:id", h.terms.Delete)
	write.POST("/terms/:id/activate", h.terms.Activate)
	write.POST("/terms/:id/complete", h.terms.Complete)
	write.POST("/terms/:id/extend", h.terms.Extend)
	write.POST("/terms/reconcile", h.terms.Reconcile)
}
