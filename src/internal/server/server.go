package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parking-svc/src/clients"
	"parking-svc/src/internal/config"
	"parking-svc/src/internal/dependency"
	"parking-svc/src/internal/vehicle"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "server")

const defaultShutdownTimeout = 10 * time.Second

type Server struct {
	cfg *config.Configuration
}

func New(cfg *config.Configuration) *Server {
	return &Server{cfg: cfg}
}

// Start connects the backends, serves HTTP and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	deps, err := s.buildDependencies()
	if err != nil {
		return err
	}

	shutdownTimeout := time.Duration(s.cfg.Server.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		deps.Close(ctx)
	}()

	SetupRoutes(deps)

	httpServer := &http.Server{
		Addr:         ":" + s.cfg.Server.Port,
		Handler:      deps.Router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

func (s *Server) buildDependencies() (*dependency.Manager, error) {
	cfg := s.cfg
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	var mongodb *clients.MongoDB
	if cfg.Database.Driver == config.DriverMongo {
		db, err := clients.NewMongoDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("mongodb: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.Timeout)*time.Second)
		defer cancel()
		if err := vehicle.EnsureIndexes(ctx, db, cfg.Database.VehicleCollection); err != nil {
			_ = db.Close(context.Background())
			return nil, err
		}
		mongodb = db
	}

	var redisClient *clients.RedisClient
	if cfg.Redis.Enabled {
		client, err := clients.NewRedisClient(&cfg.Redis)
		if err != nil {
			closeMongo(mongodb)
			return nil, fmt.Errorf("redis: %w", err)
		}
		redisClient = client
	}

	var rabbitMQ *clients.RabbitMQ
	if cfg.Queue.Enabled {
		rabbit, err := clients.NewRabbitMQ(&cfg.Queue.RabbitMQ)
		if err == nil {
			err = rabbit.SetupExchange()
			if err != nil {
				_ = rabbit.Close()
			}
		}
		if err != nil {
			// Events are best-effort; the service runs without a broker.
			log.WithError(err).Warn("RabbitMQ unavailable, falling back to log sink")
		} else {
			rabbitMQ = rabbit
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())

	return dependency.NewDependencyManager(router, mongodb, redisClient, rabbitMQ, cfg), nil
}

func closeMongo(db *clients.MongoDB) {
	if db != nil {
		_ = db.Close(context.Background())
	}
}
