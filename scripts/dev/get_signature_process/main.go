package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/vultisig/multisig-demo/config"
	"github.com/vultisig/multisig-demo/custody"
)

var processID string

func main() {
	flag.StringVar(&processID, "id", "", "signature process id")
	flag.Parse()

	if processID == "" {
		panic("signature process id is required")
	}

	cfg, err := config.ReadConfig("config")
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	client := custody.NewClient(cfg.API.BaseURL, cfg.API.Key, cfg.API.Timeout, nil, nil)
	process, err := client.GetMultiSigProcess(context.Background(), processID)
	if err != nil {
		panic(err)
	}

	out, err := json.MarshalIndent(process, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(out))
}
