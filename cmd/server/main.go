package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/dairykeeper/internal/server"
	"github.com/dmitrijs2005/dairykeeper/internal/server/config"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	app := server.NewApp(cfg, os.Stdout)

	if cfg.IssueTokenFor != "" {
		if err := app.IssueToken(os.Stdout); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}
