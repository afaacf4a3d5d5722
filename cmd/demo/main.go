package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisig-demo/config"
	"github.com/vultisig/multisig-demo/contexthelper"
	"github.com/vultisig/multisig-demo/custody"
	"github.com/vultisig/multisig-demo/internal/logging"
	"github.com/vultisig/multisig-demo/service"
	"github.com/vultisig/multisig-demo/storage"
)

func main() {
	// a missing .env is fine, the variables may come from the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Logger.Fatalf("fail to load .env file: %v", err)
	}

	cfg, err := config.ReadConfig("config")
	if err != nil {
		logging.Logger.Fatalf("fail to read config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logging.Logger.Fatalf("invalid config: %v", err)
	}
	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		logging.Logger.Fatalf("invalid log config: %v", err)
	}
	logger := logging.Logger

	var sdClient statsd.ClientInterface = &statsd.NoOpClient{}
	if addr := cfg.DatadogAddr(); addr != "" {
		client, err := statsd.New(addr)
		if err != nil {
			logger.Fatalf("fail to create statsd client: %v", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Errorf("fail to close statsd client: %v", err)
			}
		}()
		sdClient = client
	}

	var journal service.RunJournal
	if cfg.Redis.Enabled {
		redisStorage, err := storage.NewRedisStorage(*cfg)
		if err != nil {
			logger.Fatalf("fail to connect to redis: %v", err)
		}
		defer func() {
			if err := redisStorage.Close(); err != nil {
				logger.Errorf("fail to close redis: %v", err)
			}
		}()
		journal = redisStorage
	}

	var archive service.RunArchive
	if cfg.BlockStorage.Enabled {
		blockStorage, err := storage.NewBlockStorage(*cfg, logger)
		if err != nil {
			logger.Fatalf("fail to create block storage: %v", err)
		}
		archive = blockStorage
	}

	client := custody.NewClient(cfg.API.BaseURL, cfg.API.Key, cfg.API.Timeout, sdClient, logger)
	demo, err := service.NewDemoService(*cfg, client, journal, archive, sdClient, logger)
	if err != nil {
		logger.Fatalf("fail to create demo service: %v", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := contexthelper.WithOptionalTimeout(sigCtx, cfg.Demo.RunTimeout)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"base_url": cfg.API.BaseURL,
		"accounts": cfg.Demo.Accounts,
		"parallel": cfg.Demo.Parallel,
	}).Info("Starting multisig demo")

	record, err := demo.Run(ctx)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"run":    record.RunID,
			"status": custody.StatusCode(err),
			"error":  err,
		}).Error("Demo failed")
		cancel()
		stop()
		os.Exit(1)
	}
	fmt.Println("Done")
}
