package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/essay-review-api/internal/handler"
	"github.com/noah-isme/essay-review-api/internal/middleware"
	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/service"
	"github.com/noah-isme/essay-review-api/pkg/config"
	"github.com/noah-isme/essay-review-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/essay-review-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/essay-review-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, app *application, metrics *service.MetricsService, checks map[string]handler.ReadinessCheck, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	catalogHandler := handler.NewCatalogHandler(app.catalog)
	catalog := api.Group("/catalog")
	catalog.GET("/levels", catalogHandler.Levels)
	catalog.GET("/types", catalogHandler.Types)
	catalog.GET("/options", catalogHandler.Options)
	catalog.GET("/statuses", catalogHandler.Statuses)
	catalog.GET("/criteria", catalogHandler.Criteria)
	catalog.POST("/quote", catalogHandler.Quote)

	secured := api.Group("")
	secured.Use(middleware.JWT(app.tokens))

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)

	orderHandler := handler.NewOrderHandler(app.orders)
	orders := secured.Group("/orders")
	orders.POST("", middleware.RequireRoles(models.RoleStudent), orderHandler.Create)
	orders.GET("", orderHandler.List)
	orders.GET("/waiting", staff, orderHandler.Waiting)
	orders.GET("/export", admin, orderHandler.Export)
	orders.GET("/deadlines", orderHandler.Deadlines)
	orders.GET("/:id", orderHandler.Get)
	orders.PUT("/:id", orderHandler.Update)
	orders.POST("/:id/submit", orderHandler.Submit)
	orders.POST("/:id/assign", staff, orderHandler.Assign)
	orders.POST("/:id/cancel", orderHandler.Cancel)
	orders.GET("/:id/receipt", orderHandler.Receipt)

	resultHandler := handler.NewResultHandler(app.orders)
	secured.GET("/results/:id", resultHandler.Get)
	secured.PUT("/results/:id", staff, resultHandler.Grade)
	secured.GET("/results/:id/comments", resultHandler.Comments)
	secured.PUT("/results/:id/comments", staff, resultHandler.UpdateComments)

	teacherHandler := handler.NewTeacherStatusHandler(app.capacity)
	teachers := secured.Group("/teachers/status")
	teachers.GET("", admin, teacherHandler.List)
	teachers.POST("", admin, teacherHandler.Register)
	teachers.GET("/me", middleware.RequireRoles(models.RoleTeacher), teacherHandler.Me)
	teachers.GET("/free", teacherHandler.Free)

	paymentHandler := handler.NewPaymentHandler(app.payments)
	secured.POST("/payments/wallets/:user_id/deposit", admin, paymentHandler.Deposit)

	secured.GET("/admin/metrics/summary", admin, metricsHandler.Snapshot)

	return r
}
