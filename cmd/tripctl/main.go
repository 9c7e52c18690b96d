package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"trip_planner/internal/adapters/observability"
)

func main() {
	log.Logger = observability.NewStderrLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
