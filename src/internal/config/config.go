package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const defaultConfigPath = "src/internal/config/cfg.yml"

const (
	DriverMongo  = "mongodb"
	DriverMemory = "memory"
)

type Configuration struct {
	Logs      LogsSettings      `mapstructure:"logs"`
	App       Application       `mapstructure:"app"`
	Database  Database          `mapstructure:"database"`
	Queue     QueueConfig       `mapstructure:"queue"`
	Redis     Redis             `mapstructure:"redis"`
	Server    ServerSettings    `mapstructure:"server"`
	Cache     CacheConfig       `mapstructure:"cache"`
	Parking   ParkingSettings   `mapstructure:"parking"`
	RateLimit RateLimitSettings `mapstructure:"rate-limit"`
}

type LogsSettings struct {
	Level            string `mapstructure:"level"`
	Path             string `mapstructure:"log-path"`
	EnableJSONOutput bool   `mapstructure:"enable-json-output"`
}

type Application struct {
	Name    string `mapstructure:"name"`
	Timeout int    `mapstructure:"timeout"`
	Version string `mapstructure:"version"`
}

type Database struct {
	Driver            string `mapstructure:"driver"`
	Url               string `mapstructure:"url"`
	DbName            string `mapstructure:"dbname"`
	VehicleCollection string `mapstructure:"vehicle-collection"`
	Timeout           int    `mapstructure:"timeout"`
}

type QueueConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	Url          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	ExchangeType string `mapstructure:"exchange-type"`
	Durable      bool   `mapstructure:"durable"`
	AutoDelete   bool   `mapstructure:"auto-delete"`
	Internal     bool   `mapstructure:"internal"`
	NoWait       bool   `mapstructure:"no-wait"`
	Timeout      int    `mapstructure:"timeout"`
}

type Redis struct {
	Enabled  bool   `mapstructure:"enabled"`
	Url      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

type ServerSettings struct {
	Port            string `mapstructure:"port"`
	Mode            string `mapstructure:"mode"`
	ReadTimeout     int    `mapstructure:"read-timeout"`
	WriteTimeout    int    `mapstructure:"write-timeout"`
	IdleTimeout     int    `mapstructure:"idle-timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown-timeout"`
}

type CacheConfig struct {
	OccupancyKey               string `mapstructure:"occupancy-key"`
	OccupancyExpirationSeconds int    `mapstructure:"occupancy-expiration-seconds"`
}

type ParkingSettings struct {
	EventsTopic            string `mapstructure:"events-topic"`
	StrictSpotReassignment bool   `mapstructure:"strict-spot-reassignment"`
	LockTTLSeconds         int    `mapstructure:"lock-ttl-seconds"`
}

type RateLimitSettings struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
	Burst             int     `mapstructure:"burst"`
}

func Load() *Configuration {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := read(path)
	if err != nil {
		logrus.Panicf("Error loading configuration: %s", err)
	}
	logrus.Info("Configuration loaded")

	applyEnvOverrides(cfg)

	return cfg
}

func applyEnvOverrides(cfg *Configuration) {
	mongoUri := os.Getenv("MONGODB_URL")
	if mongoUri != "" {
		cfg.Database.Url = mongoUri
	}

	dbName := os.Getenv("DB_NAME")
	if dbName != "" {
		cfg.Database.DbName = dbName
	}

	driver := os.Getenv("DB_DRIVER")
	if driver != "" {
		cfg.Database.Driver = driver
	}

	redisUrl := os.Getenv("REDIS_URL")
	if redisUrl != "" {
		cfg.Redis.Url = redisUrl
	}

	redisDB := os.Getenv("REDIS_DB")
	if redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.Redis.Db = db
		}
	}

	rabbitmqUrl := os.Getenv("RABBITMQ_URL")
	if rabbitmqUrl != "" {
		cfg.Queue.RabbitMQ.Url = rabbitmqUrl
	}

	port := os.Getenv("SERVER_PORT")
	if port != "" {
		cfg.Server.Port = port
	}
}

func read(path string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file: %w", err)
	}

	if config.Database.Driver == "" {
		config.Database.Driver = DriverMongo
	}
	if config.Parking.EventsTopic == "" {
		config.Parking.EventsTopic = "parking.vehicles"
	}
	if config.Parking.LockTTLSeconds <= 0 {
		config.Parking.LockTTLSeconds = 5
	}

	return &config, nil
}
