package main

import (
	"fmt"
	"os"

	"github.com/abduss/assetgate/internal/config"
	"github.com/abduss/assetgate/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if _, err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(&cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
