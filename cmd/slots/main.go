package main

import (
	"context"
	_ "time/tzdata"

	"slotify/internal/slots/events"
	"slotify/internal/slots/handler"
	"slotify/internal/slots/policy"
	"slotify/internal/slots/repository"
	"slotify/internal/slots/service"
	"slotify/internal/slots/timewindow"
	"slotify/pkg/app"
	"slotify/pkg/auth"
	"slotify/pkg/config"
	"slotify/pkg/kafka"
	kafka_middleware "slotify/pkg/kafka/middleware"
)

const ServiceName = "slots"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()
	cfg.SetRedis()

	cfg.Log.Info("Starting Slots service")
	serverApp := app.NewApplication(cfg)

	publisher, metrics := initPublisher(cfg)
	serverApp.OnShutdown("events", func(context.Context) error { return publisher.Close() })
	serverApp.SetTracing(ServiceName)

	repo := initRepository(cfg)
	authenticator := auth.NewAuthenticator(cfg.JWTSecret, cfg.Log)
	slotService, bookingService := initServices(cfg, repo, publisher)

	serverApp.WithCallerKey(authenticator.Subject)
	serverApp.SetApp(
		handler.NewSlotHandler(slotService, bookingService, authenticator, cfg.Log),
		handler.NewHealthHandler(repo, metrics, cfg.Log),
	)
	serverApp.Run()
}

func initRepository(cfg *config.Config) repository.SlotRepository {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		return repository.NewPostgresSlotRepository(cfg)
	case config.StoreMemory:
		return repository.NewMemorySlotRepository()
	default:
		return repository.NewMongoSlotRepository(cfg)
	}
}

func initPublisher(cfg *config.Config) (events.Publisher, *kafka_middleware.Metrics) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Slot event publishing disabled")
		return events.Nop{}, nil
	}

	producer, err := kafka.NewProducer(cfg.Kafka, cfg.KafkaSlotEventsTopic, cfg.KafkaSlotEventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	producer.Use(kafka_middleware.MetricsProducerMiddleware(metrics))
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	cfg.Log.Info("Slot event publishing enabled", "topic", producer.Topic())
	return events.NewKafkaPublisher(producer, ServiceName), metrics
}

func initServices(cfg *config.Config, repo repository.SlotRepository, publisher events.Publisher) (service.SlotService, service.BookingService) {
	slotPolicy := policy.New(policy.Config{
		BookingLead:        cfg.BookingLeadTime,
		CancelLead:         cfg.CancelLeadTime,
		MaxIntervalMinutes: cfg.MaxSlotIntervalMin,
		Location:           cfg.Location,
	}, cfg.Log)
	clock := timewindow.SystemClock{Location: cfg.Location}

	slotService := service.NewSlotService(repo, slotPolicy, publisher, clock, cfg)
	bookingService := service.NewBookingService(repo, slotPolicy, publisher, clock, cfg)

	cfg.Log.Info("Slot services initialized", "store", cfg.StoreDriver, "timezone", cfg.Location.String())
	return slotService, bookingService
}
