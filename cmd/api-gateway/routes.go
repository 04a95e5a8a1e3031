package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/handler"
	"github.com/noah-isme/sma-health-api/internal/middleware"
	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/service"
	"github.com/noah-isme/sma-health-api/pkg/config"
)

type routeDeps struct {
	auth          *service.AuthService
	metrics       *service.MetricsService
	pingers       map[string]handler.Pinger
	events        *service.CampaignEventService
	registrations *service.RegistrationService
	appointments  *service.AppointmentService
	visits        *service.NurseVisitService
	audit         *zap.Logger
}

// campaignPrefixes maps each campaign kind to its route prefix.
var campaignPrefixes = map[models.CampaignKind]string{
	models.CampaignVaccine:      "vaccine",
	models.CampaignMedicalCheck: "medical-check",
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.pingers)

	r.Use(middleware.Metrics(deps.metrics))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authHandler := handler.NewAuthHandler(deps.auth)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))
	secured.GET("/auth/me", authHandler.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleManager)
	staffOrParent := middleware.RequireRoles(models.RoleParent, models.RoleAdmin, models.RoleManager)
	nurse := middleware.RequireRoles(models.RoleSchoolNurse)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.audit, action, resource)
	}

	for kind, prefix := range campaignPrefixes {
		events := handler.NewCampaignEventHandler(kind, deps.events)
		api.GET("/"+prefix+"-events/search", events.Search)
		api.GET("/"+prefix+"-events/:id", events.Get)

		eventGroup := secured.Group("/"+prefix+"-events", staff)
		eventGroup.POST("/create", events.Create)
		eventGroup.POST("/:id/registrations", events.OpenRegistrations)
		eventGroup.PATCH("/:id/status", events.UpdateStatus)
		eventGroup.DELETE("/:id", events.Delete)

		registrations := handler.NewRegistrationHandler(kind, deps.registrations)
		regGroup := secured.Group("/" + prefix + "-registrations")
		regGroup.POST("/create", staffOrParent, registrations.Create)
		regGroup.GET("/search", registrations.Search)
		regGroup.GET("/export", middleware.RequireRoles(models.RoleAdmin, models.RoleManager, models.RoleSchoolNurse), registrations.Export)
		regGroup.GET("/:id", registrations.Get)
		regGroup.PATCH("/:id/status", staffOrParent, audit("registration.decide", prefix+"-registration"), registrations.UpdateStatus)
		regGroup.DELETE("/:id", staff, registrations.Delete)

		appointments := handler.NewAppointmentHandler(kind, deps.appointments)
		apptGroup := secured.Group("/" + prefix + "-appointments")
		apptGroup.GET("/search", appointments.Search)
		apptGroup.GET("/:id", appointments.Get)
		apptGroup.PATCH("/:id/check", nurse, audit("appointment.check", prefix+"-appointment"), appointments.Check)
		apptGroup.PATCH("/:id/cancel", staff, audit("appointment.cancel", prefix+"-appointment"), appointments.Cancel)
		apptGroup.DELETE("/:id", staff, appointments.Delete)
	}

	visits := handler.NewNurseVisitHandler(deps.visits)
	visitGroup := secured.Group("/nurse-visits")
	visitGroup.POST("/create", middleware.RequireRoles(models.RoleParent), visits.Create)
	visitGroup.GET("/search", visits.Search)
	visitGroup.GET("/:id", visits.Get)
	visitGroup.PATCH("/:id/approve", nurse, audit("nurse_visit.approve", "nurse-visit"), visits.Approve)
	visitGroup.PATCH("/:id/reject", nurse, audit("nurse_visit.reject", "nurse-visit"), visits.Reject)
	visitGroup.PATCH("/:id/arrive", nurse, audit("nurse_visit.arrive", "nurse-visit"), visits.Arrive)
	visitGroup.PATCH("/:id/complete", nurse, audit("nurse_visit.complete", "nurse-visit"), visits.Complete)
	visitGroup.PATCH("/:id/cancel", middleware.RequireRoles(models.RoleParent, models.RoleSchoolNurse), audit("nurse_visit.cancel", "nurse-visit"), visits.Cancel)
	visitGroup.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), visits.Delete)
}
