package main

import (
	"net/http"
	"os"

	"github.com/arbes-ai/evaluator/internal/api"
	"github.com/arbes-ai/evaluator/internal/api/middleware"
	"github.com/arbes-ai/evaluator/internal/setup"
	"github.com/arbes-ai/evaluator/internal/setup/logger"
	"github.com/emicklei/go-restful/v3"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = logger.New(os.Getenv("LOG_LEVEL"))

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	env := setup.LoadEnv()
	deps, err := setup.Wire(env, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	handler := api.NewHandler(deps.Orchestrator, deps.Logger)
	container := restful.NewContainer()
	container.Filter(middleware.Logger)
	container.Filter(middleware.RecoverPanic)
	api.RegisterRoutes(container, handler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	log.Info().Str("address", env.ListenAddr).Msg("Starting evaluator API")

	server := http.Server{
		Addr:    env.ListenAddr,
		Handler: corsHandler.Handler(container),
	}

	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
