package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/vultisig/multisig-demo/config"
	"github.com/vultisig/multisig-demo/internal/logging"
	"github.com/vultisig/multisig-demo/internal/types"
	"github.com/vultisig/multisig-demo/storage"
)

var runID string
var runDate string

func main() {
	flag.StringVar(&runID, "run", "", "run id")
	flag.StringVar(&runDate, "date", time.Now().UTC().Format("2006-01-02"), "run start date (UTC), YYYY-MM-DD")
	flag.Parse()

	if runID == "" {
		panic("run id is required")
	}
	startedAt, err := time.Parse("2006-01-02", runDate)
	if err != nil {
		panic(err)
	}

	cfg, err := config.ReadConfig("config")
	if err != nil {
		panic(err)
	}
	if !cfg.BlockStorage.Enabled || cfg.BlockStorage.Bucket == "" {
		panic("block storage is not configured, set BLOCK_STORAGE_ENABLED and BLOCK_STORAGE_BUCKET")
	}

	blockStorage, err := storage.NewBlockStorage(*cfg, logging.Logger)
	if err != nil {
		panic(err)
	}

	name := types.RunRecord{RunID: runID, StartedAt: startedAt}.ReportName()
	content, err := blockStorage.GetFile(context.Background(), name)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(content))
}
