package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booking-service/config"
	"booking-service/internal/actiontoken"
	"booking-service/internal/api"
	"booking-service/internal/broker"
	"booking-service/internal/redisclient"
	"booking-service/internal/service"
	"booking-service/internal/store"
	"booking-service/internal/util"
	"booking-service/internal/whatsapp"
	"booking-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "booking-service"

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting booking service")

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.Tokens.Secret == config.DefaultTokenSecret {
		logger.Warn("JWT_SECRET is the development default, owner action tokens are forgeable")
	}

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer, cfg.Kafka.TopicBookingEvents, cfg.Kafka.TopicNotificationRetry)

	whatsappClient := whatsapp.NewClient(cfg.WhatsApp)
	if !cfg.WhatsApp.Configured() {
		logger.Warn("WhatsApp is not configured, outbound messages will be skipped")
	}
	tokens := actiontoken.NewIssuer(cfg.Tokens.Secret, cfg.Tokens.TTL)

	dispatcher := service.NewNotificationDispatcher(whatsappClient, db, eventPublisher,
		cfg.Business.NotificationMaxAttempts, cfg.Business.NotificationRetryDelay)
	ticketService := service.NewTicketService(db, cfg.Business)
	refundService := service.NewRefundService(db, dispatcher, eventPublisher, cfg.Business)
	referralService := service.NewReferralService(db)
	bookingService := service.NewBookingService(db, referralService, eventPublisher, cfg.Business)
	paymentService := service.NewPaymentService(db, dispatcher, tokens, eventPublisher, cfg.Paytm, cfg.Business)
	decisionService := service.NewOwnerDecisionService(db, tokens, whatsappClient, dispatcher,
		ticketService, refundService, eventPublisher, redisClient, cfg.Business)
	monitoringService := service.NewMonitoringService(db, dispatcher, redisClient, cfg.Business)
	commissionService := service.NewCommissionService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	retryConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotificationRetry, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(retryConsumer, dispatcher)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Notification worker error", zap.Error(err))
		}
	}()

	monitorWorker := worker.NewMonitorWorker(monitoringService, cfg.Business.MonitorInterval)
	go func() {
		if err := monitorWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Monitor worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Bookings:    bookingService,
		Payments:    paymentService,
		Decisions:   decisionService,
		Refunds:     refundService,
		Monitoring:  monitoringService,
		Commissions: commissionService,
		Tickets:     ticketService,
		Referrals:   referralService,
	}, cfg.WhatsApp.VerifyToken,
		api.ReadinessCheck{Name: "postgres", Ping: db.Ping},
		api.ReadinessCheck{Name: "redis", Ping: redisClient.Ping},
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := notificationWorker.Stop(); err != nil {
		logger.Warn("Error stopping notification worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
