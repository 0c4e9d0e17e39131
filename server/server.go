package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"

	"github.com/inboxlab/warmstack/api"
	"github.com/inboxlab/warmstack/config"
	"github.com/inboxlab/warmstack/internal/cron"
	"github.com/inboxlab/warmstack/internal/crypto"
	"github.com/inboxlab/warmstack/internal/logger"
	"github.com/inboxlab/warmstack/internal/repository"
	"github.com/inboxlab/warmstack/internal/tracing"
	"github.com/inboxlab/warmstack/services"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	db           *gorm.DB
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	encryptor, err := crypto.NewEncryptor(cfg.AppConfig.EncryptionKey)
	if err != nil {
		return nil, err
	}

	repos := repository.InitRepositories(db, encryptor)

	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return nil, err
	}

	cronManager := cron.NewCronManager(cfg.WarmupConfig, appLogger, svcs.WarmupService, repos.DomainAccountRepository)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		db:           db,
		services:     svcs,
		repositories: repos,
		cronManager:  cronManager,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		log.Printf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	api.RegisterRoutes(s.router, s.db, s.services, s.repositories, s.config.AppConfig.APIKey)

	s.cronManager.Start()

	go s.wrapGoroutine("http_server", func() {
		log.Println("Starting HTTP server on port " + s.config.AppConfig.APIPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	})
	log.Println("WarmStack is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	s.cronManager.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Pause every live warm-up session so tomorrow's start can resume it.
	shutdownDone := make(chan struct{})
	go s.wrapGoroutine("warmup_shutdown", func() {
		defer close(shutdownDone)
		if err := s.services.WarmupService.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warmup shutdown error: %v", err)
		}
	})

	select {
	case <-shutdownDone:
		log.Println("Warmup service stopped gracefully")
	case <-time.After(10 * time.Second):
		log.Println("Warmup service stop timed out, forcing exit")
	}

	if err := s.services.EventPublisher.Close(); err != nil {
		log.Printf("Event publisher close error: %v", err)
	}

	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}

	return nil
}
