package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arbes-ai/evaluator/internal/setup"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	startTime := time.Now()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	input := flag.String("input", "", "Input directory with documents, or a single document file")
	output := flag.String("output", "", "Output directory for evaluation artifacts")
	rules := flag.String("rules", "", "Path to the rules JSON file")
	steps := flag.String("steps", "", "Path to the steps JSON file")
	configPath := flag.String("config", "", "Path to the engine config YAML")
	level := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")

	flag.Parse()

	log.Logger = log.Logger.Level(parseLevel(*level))

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	ctx, cancel := setupGracefulShutdown()
	defer cancel()

	if *configPath != "" {
		os.Setenv("EVALUATOR_CONFIG_PATH", *configPath)
	}

	env := setup.LoadEnv()
	if *input != "" {
		env.InputDir = *input
	}
	if *output != "" {
		env.OutputDir = *output
	}
	if *rules != "" {
		env.RulesPath = *rules
	}
	if *steps != "" {
		env.StepsPath = *steps
	}

	deps, err := setup.Wire(env, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	info, err := os.Stat(env.InputDir)
	if err != nil {
		log.Fatal().Err(err).Str("input", env.InputDir).Msg("Input path not accessible")
	}

	if info.IsDir() {
		err = deps.Orchestrator.Run(ctx, env.InputDir)
	} else {
		_, err = deps.Orchestrator.EvaluateFile(ctx, env.InputDir)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation run failed")
	}

	log.Info().Dur("duration", time.Since(startTime)).Msg("Batch processing complete")
}

func setupGracefulShutdown() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Warn().Msg("Received interrupt signal, finishing current work...")
		cancel()
	}()

	return ctx, cancel
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
