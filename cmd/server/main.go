package main

import (
	"net/http"
	"os"

	"github.com/pijarcapital/expansion-dss/internal/api"
	"github.com/pijarcapital/expansion-dss/internal/obslog"
)

func main() {
	obslog.Init(envOr("LOG_LEVEL", "info"), false)
	log := obslog.Logger()

	port := envOr("PORT", "8080")

	server := api.New()
	mux := http.NewServeMux()
	server.Routes(mux)

	log.Info().Str("port", port).Msg("expansion-dss server starting")
	log.Info().Msg("  POST /simulate - run a Monte Carlo batch")
	log.Info().Msg("  GET  /presets  - list named scenario bundles")
	log.Info().Msg("  GET  /healthz  - health check")

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
