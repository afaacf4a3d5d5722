package main

import (
	"errors"
	"io/fs"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisig-demo/api"
	"github.com/vultisig/multisig-demo/config"
	"github.com/vultisig/multisig-demo/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Logger.Fatalf("fail to load .env file: %v", err)
	}
	cfg, err := config.ReadConfig("config")
	if err != nil {
		logging.Logger.Fatalf("fail to read config: %v", err)
	}
	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		logging.Logger.Fatalf("invalid log config: %v", err)
	}
	logger := logging.Logger

	apiKey := cfg.Sandbox.APIKey
	if apiKey == "" {
		apiKey = cfg.API.Key
	}

	var sdClient statsd.ClientInterface = &statsd.NoOpClient{}
	if addr := cfg.DatadogAddr(); addr != "" {
		client, err := statsd.New(addr)
		if err != nil {
			logger.Fatalf("fail to create statsd client: %v", err)
		}
		sdClient = client
	}

	server, err := api.NewServer(cfg.Sandbox.Host, cfg.Sandbox.Port, apiKey, api.NewSandbox(), sdClient, logger)
	if err != nil {
		logger.Fatalf("fail to create sandbox server: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"host": cfg.Sandbox.Host,
		"port": cfg.Sandbox.Port,
	}).Info("Starting custody sandbox")
	if err := server.StartServer(); err != nil {
		logger.Fatalf("sandbox server stopped: %v", err)
	}
}
