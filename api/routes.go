package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxlab/warmstack/api/handlers"
	"github.com/inboxlab/warmstack/api/middleware"
	"github.com/inboxlab/warmstack/internal/repository"
	"github.com/inboxlab/warmstack/internal/tracing"
	"github.com/inboxlab/warmstack/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, db *gorm.DB, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck(db))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-WARMSTACK-API-KEY",
		ValidAPIKey: apikey,
	})

	v1 := r.Group("/v1")
	v1.Use(apiKeyMiddleware)
	v1.Use(middleware.TracingMiddleware())
	{
		warmup := v1.Group("/warmup")
		{
			warmup.POST("/start", handlers.StartWarmup(s.WarmupService))
			warmup.POST("/pause", handlers.PauseWarmup(s.WarmupService))
			warmup.POST("/resume", handlers.ResumeWarmup(s.WarmupService))
			warmup.POST("/stop", handlers.StopWarmup(s.WarmupService))
			warmup.GET("/status/:domainAccountId", handlers.WarmupStatus(s.WarmupService))
			warmup.GET("/sessions", handlers.ListSessions(repos.WarmupSessionRepository))
			warmup.GET("/sessions/:id/logs", handlers.SessionLogs(repos.WarmupSessionRepository, repos.MailLogRepository))
			warmup.GET("/logs", handlers.RecentLogs(repos.MailLogRepository))
		}

		accounts := v1.Group("/accounts")
		{
			accounts.POST("/domains", handlers.CreateDomainAccount(repos.DomainAccountRepository))
			accounts.GET("/domains", handlers.ListDomainAccounts(repos.DomainAccountRepository))
			accounts.GET("/domains/:id", handlers.GetDomainAccount(repos.DomainAccountRepository))
			accounts.DELETE("/domains/:id", handlers.DeleteDomainAccount(repos.DomainAccountRepository))

			accounts.POST("/leads", handlers.CreateLeadAccount(repos.LeadAccountRepository))
			accounts.GET("/leads", handlers.ListLeadAccounts(repos.LeadAccountRepository))
			accounts.DELETE("/leads/:id", handlers.DeleteLeadAccount(repos.LeadAccountRepository))
		}
	}
}
