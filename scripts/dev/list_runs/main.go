package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/vultisig/multisig-demo/config"
	"github.com/vultisig/multisig-demo/storage"
)

var count int64

func main() {
	flag.Int64Var(&count, "n", 10, "number of recent runs to show")
	flag.Parse()

	cfg, err := config.ReadConfig("config")
	if err != nil {
		panic(err)
	}
	if !cfg.Redis.Enabled {
		panic("redis is not enabled, set REDIS_ENABLED=true")
	}

	redisStorage, err := storage.NewRedisStorage(*cfg)
	if err != nil {
		panic(err)
	}
	defer redisStorage.Close()

	ctx := context.Background()
	ids, err := redisStorage.RecentRuns(ctx, count)
	if err != nil {
		panic(err)
	}
	for _, id := range ids {
		record, err := redisStorage.GetRun(ctx, id)
		if err != nil {
			fmt.Printf("%s\t<expired>\n", id)
			continue
		}
		fmt.Printf("%s\t%s\twallet=%s\tprocess=%s\tstatus=%s\t%s\n",
			record.RunID,
			record.StartedAt.Format("2006-01-02T15:04:05Z"),
			record.WalletID,
			record.ProcessID,
			record.Status,
			record.Error,
		)
	}
}
