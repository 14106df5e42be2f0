package dependency

import (
	"context"
	"time"

	"parking-svc/src/clients"
	"parking-svc/src/internal/cache"
	"parking-svc/src/internal/capacity"
	"parking-svc/src/internal/config"
	"parking-svc/src/internal/events"
	"parking-svc/src/internal/metrics"
	"parking-svc/src/internal/parking"
	"parking-svc/src/internal/vehicle"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Manager owns every collaborator of the service. Mongodb, Redis and
// RabbitMQ are nil when the matching backend is disabled.
type Manager struct {
	Router         *gin.Engine
	Config         *config.Configuration
	Mongodb        *clients.MongoDB
	Redis          *clients.RedisClient
	RabbitMQ       *clients.RabbitMQ
	Registry       *prometheus.Registry
	Metrics        *metrics.Metrics
	VehicleRepo    vehicle.Repository
	Ledger         *capacity.Ledger
	EventSink      events.Sink
	CacheService   cache.Service
	ParkingService parking.Service
	ParkingHandler parking.Handler
}

func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) *Manager {
	var vehicleRepo vehicle.Repository
	if mongodb != nil {
		vehicleRepo = vehicle.NewVehicleRepository(mongodb, cfg.Database.VehicleCollection)
	} else {
		logrus.Warn("Using in-memory vehicle storage")
		vehicleRepo = vehicle.NewMemoryRepository()
	}

	var locker capacity.Locker
	var cacheService cache.Service
	if redisClient != nil {
		locker = capacity.NewRedisLocker(redisClient.Client, time.Duration(cfg.Parking.LockTTLSeconds)*time.Second)
		cacheService = cache.NewCacheService(redisClient.Client, cfg)
	} else {
		logrus.Warn("Redis disabled, admissions are serialized in-process only")
		locker = capacity.NewLocalLocker()
		cacheService = cache.NewNoopService()
	}

	var sink events.Sink
	if rabbitMQ != nil {
		sink = clients.NewEventPublisher(rabbitMQ.Channel, &cfg.Queue.RabbitMQ)
	} else {
		logrus.Warn("RabbitMQ disabled, events are only logged")
		sink = events.NewLogSink()
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	ledger := capacity.NewLedger(vehicleRepo, locker)
	parkingService := parking.NewParkingService(vehicleRepo, ledger, sink, cacheService, cfg, parking.WithMetrics(m))
	parkingHandler := parking.NewHandler(cfg, parkingService)

	return &Manager{
		Router:         router,
		Config:         cfg,
		Mongodb:        mongodb,
		Redis:          redisClient,
		RabbitMQ:       rabbitMQ,
		Registry:       registry,
		Metrics:        m,
		VehicleRepo:    vehicleRepo,
		Ledger:         ledger,
		EventSink:      sink,
		CacheService:   cacheService,
		ParkingService: parkingService,
		ParkingHandler: parkingHandler,
	}
}

// Close releases the external connections in reverse order of creation.
func (m *Manager) Close(ctx context.Context) {
	if m.RabbitMQ != nil {
		_ = m.RabbitMQ.Close()
	}
	if m.Redis != nil {
		_ = m.Redis.Close()
	}
	if m.Mongodb != nil {
		_ = m.Mongodb.Close(ctx)
	}
}
