package main

import (
	"context"
	"log"
	"os"

	"github.com/castlegate/chessd/internal/cli"
	appcfg "github.com/castlegate/chessd/internal/config"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	client := cli.NewServerClient(cfg.ServerURL)
	repl := cli.NewREPL(client, os.Stdin, os.Stdout)
	if err := repl.Run(context.Background()); err != nil {
		log.Fatalf("client error: %v", err)
	}
}
