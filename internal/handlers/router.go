package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobsync/internal/auth"
	"github.com/justsurfingit/jobsync/internal/config"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/services"
)

// Services bundles what the router hands out to handlers.
type Services struct {
	Jobs     *services.JobService
	Merges   *services.MergeService
	Users    *services.UserService
	Emails   *services.EmailService
	Verifier auth.TokenVerifier
}

func NewRouter(cfg *config.Config, svc Services, log *logger.Logger) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))

	corsCfg := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.Server.AllowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsCfg))

	jobHandler := NewJobHandler(svc.Jobs, log)
	mergeHandler := NewMergeHandler(svc.Merges, log)
	userHandler := NewUserHandler(svc.Users, log)
	inboundHandler := NewInboundHandler(svc.Emails, cfg.Mail.InboundSecret, log)

	api := r.Group("/api/v1")
	{
		api.GET("/health", HealthCheck)
		api.POST("/inbound", inboundHandler.Receive)
	}

	authed := api.Group("")
	authed.Use(Timeout(cfg.Server.RequestTimeout), auth.Middleware(svc.Verifier, svc.Users, log))
	{
		authed.GET("/me", userHandler.Me)
		authed.PATCH("/me", userHandler.UpdateProfile)
		authed.PUT("/me/email-code", userHandler.UpdateEmailCode)

		// Job Routes
		authed.GET("/jobs", jobHandler.ListJobs)
		authed.POST("/jobs", jobHandler.CreateJob)
		authed.GET("/dashboard", jobHandler.Dashboard)
		authed.GET("/analytics", jobHandler.Analytics)
		authed.PATCH("/jobs/:id", jobHandler.UpdateJob)
		authed.DELETE("/jobs/:id", jobHandler.DeleteJob)
		authed.PUT("/jobs/:id/stage", jobHandler.UpdateStage)
		authed.GET("/jobs/:id/timeline", jobHandler.Timeline)
		authed.PUT("/job-details/:id/stage", jobHandler.UpdateEmailStage)
		authed.GET("/emails/:id", jobHandler.GetEmail)

		// Merge Routes
		authed.POST("/jobs/merge-duplicates", mergeHandler.MergeDuplicates)
		authed.POST("/jobs/reconcile", mergeHandler.Reconcile)
		authed.POST("/jobs/merge", mergeHandler.MergeJobs)
		authed.POST("/companies/merge", mergeHandler.MergeCompanies)
	}

	return r
}
