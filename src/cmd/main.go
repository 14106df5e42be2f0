package main

import (
	"parking-svc/src/internal/config"
	"parking-svc/src/internal/logger"
	"parking-svc/src/internal/server"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

func main() {
	cfg := config.Load()
	logger.Init(cfg)

	// Amounts are serialized as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	log.Infof("Application %s is starting....", cfg.App.Name)

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		log.WithError(err).Fatalf("Error starting server: %v", err)
	}
}
