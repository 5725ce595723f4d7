package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"outreach-server/internal/config"
	"outreach-server/internal/observability"
	"outreach-server/internal/store"

	campaignHandler "outreach-server/internal/campaign/handler"
	campaignProcessor "outreach-server/internal/campaign/processor"
	kafkaClient "outreach-server/internal/clients/kafka"
	"outreach-server/internal/clients/mailgun"
	openaiClient "outreach-server/internal/clients/openai"
	redisClient "outreach-server/internal/clients/redis"
	"outreach-server/internal/engine"
	"outreach-server/internal/events"
	"outreach-server/internal/gateway"
	"outreach-server/internal/ratelimit"
	"outreach-server/internal/triage"
	webhookHandler "outreach-server/internal/webhooks/handler"
	webhookProcessor "outreach-server/internal/webhooks/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  *store.Store
	Logger *observability.Logger

	// Handlers
	CampaignHandler campaignHandler.Handler
	WebhookHandler  *webhookHandler.Handler

	// Background workers
	Scheduler *engine.Scheduler

	// Clients held for cleanup
	KafkaProducer *kafkaClient.Producer
	Redis         *redisClient.Client
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Database store
	dataStore, err := store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.Store = &dataStore

	// Delivery provider client and gateway
	mailgunClient, err := mailgun.NewClient(cfg.Mailgun.APIKey, cfg.Mailgun.Domain, cfg.Mailgun.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailgun client: %w", err)
	}
	deliveryGateway := gateway.New(mailgunClient, deps.Store, gateway.Config{
		From:           cfg.Mailgun.FromAddress,
		ReplyTo:        cfg.Mailgun.ReplyTo,
		MaxRetries:     cfg.Delivery.MaxRetries,
		RetryBaseDelay: cfg.Delivery.RetryBaseDelay,
		RetryMaxDelay:  cfg.Delivery.RetryMaxDelay,
		AuthCooldown:   cfg.Delivery.AuthCooldown,
		BodyMaxBytes:   cfg.Delivery.BodyMaxBytes,
		TestMode:       cfg.Mailgun.TestMode,
	}, logger)

	// Kafka analytics side-channel, shielded by a circuit breaker
	deps.KafkaProducer = kafkaClient.NewProducer(kafkaClient.ProducerConfig{
		Brokers: strings.Split(cfg.Kafka.Brokers, ","),
		Topic:   cfg.Kafka.Topic,
	}, logger)
	analyticsBreaker := gateway.NewCircuitBreaker(cfg.Delivery.BreakerThreshold, cfg.Delivery.BreakerCooldown)
	publisher := events.NewPublisher(deps.KafkaProducer, analyticsBreaker, logger)

	// Campaign engine: executor, service, scheduler loop
	executor := engine.NewExecutor(deliveryGateway, deps.Store, deps.Store, publisher, logger)
	engineService := engine.NewService(deps.Store, deps.Store, executor, engine.NewRegistry(), publisher, logger, engine.ServiceConfig{
		LeaseDuration:       cfg.Scheduler.LeaseDuration,
		FailureBackoff:      cfg.Scheduler.FailureBackoff,
		BatchSize:           cfg.Delivery.BatchSize,
		Concurrency:         cfg.Delivery.Concurrency,
		DelayBetweenBatches: cfg.Delivery.DelayBetweenBatches,
	})
	deps.Scheduler = engine.NewScheduler(engineService, logger, cfg.Scheduler.TickInterval, cfg.Scheduler.TickJitter)

	// Redis-backed launch rate limiting (optional)
	deps.Redis, err = redisClient.NewClient(cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	launchLimiter := ratelimit.NewService(deps.Redis, logger, 10)

	// Reply triage
	triageClient := openaiClient.NewClient(cfg.Services.OpenAIAPIKey, logger)
	replyTriage := triage.NewProcessor(triageClient, deps.Store, logger)

	// Campaign API
	campaignProc := campaignProcessor.New(deps.Store, engineService, replyTriage, logger)
	deps.CampaignHandler = campaignHandler.New(campaignProc, launchLimiter, logger)

	// Provider webhooks
	webhookProc := webhookProcessor.New(deps.Store, replyTriage, logger)
	deps.WebhookHandler = webhookHandler.New(webhookProc, logger)

	logger.Info(ctx, "Dependencies initialized")
	return deps, nil
}

// Cleanup releases held connections
func (d *Dependencies) Cleanup() {
	if d.KafkaProducer != nil {
		d.KafkaProducer.Close()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.Store != nil {
		d.Store.Close()
	}
}
