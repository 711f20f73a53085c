package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"teascan/cmd"
	"teascan/internal/config"
	"teascan/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Commands validate their own configuration; here only the logger
	// settings matter, and local-only loading needs no credentials.
	cfg, err := config.LoadLocalOnly()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting teascan")

	cmd.Execute()

	log.Debug().Msg("teascan shutdown")
	os.Exit(0)
}
