package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"formscan-relay/internal/config"
	"formscan-relay/internal/handlers/relay"
	"formscan-relay/internal/identity"
	"formscan-relay/internal/modelapi"
	"formscan-relay/internal/routers"
	"formscan-relay/internal/shared"

	"github.com/manifold-inc/manifold-sdk/lib/eflag"
	"go.uber.org/zap"
)

func main() {
	// Flags / ENV Variables
	listen := flag.String("listen", ":80", "Address to listen on")
	debug := flag.Bool("debug", false, "Debug enabled")
	metricsAPIKey := flag.String("metrics-api-key", "", "Metrics api key")
	shutdownTimeout := flag.Duration("shutdown-timeout", shared.DefaultShutdownTimeout, "Graceful shutdown timeout")

	err := eflag.SetFlagsFromEnvironment()
	if err != nil {
		panic(err)
	}
	flag.Parse()

	var logger *zap.Logger
	if !*debug {
		logger, err = zap.NewProduction()
		if err != nil {
			panic("Failed init logger")
		}
	}
	if *debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			panic("Failed init logger")
		}
	}
	log := logger.Sugar()
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Errorw("Failed loading config", "error", err)
		_ = log.Sync()
		os.Exit(1)
	}

	identityClient := identity.NewClient(cfg.BackendURL, cfg.BackendAnonKey, cfg.HTTPTimeout, log)
	modelClient := modelapi.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.HTTPTimeout, log)

	relayHandler, err := relay.NewRelayHandler(modelClient, modelClient, relay.RelayConfig{
		VisionModel:        cfg.VisionModel,
		TranscriptionModel: cfg.TranscriptionModel,
		ChatModel:          cfg.ChatModel,
		VisionMaxTokens:    cfg.VisionMaxTokens,
		ChatMaxTokens:      cfg.ChatMaxTokens,
		StrictFormSchema:   cfg.StrictFormSchema,
	}, log)
	if err != nil {
		log.Errorw("Failed building relay handler", "error", err)
		_ = log.Sync()
		os.Exit(1)
	}

	e := routers.NewServer(routers.ServerConfig{
		MaxBodySize:   cfg.MaxBodySize,
		MetricsAPIKey: *metricsAPIKey,
	}, relayHandler, identityClient, log)

	// Write timeout must exceed the upstream client timeout
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.WriteTimeout = cfg.HTTPTimeout + 30*time.Second

	go func() {
		log.Infow("Starting relay", "listen", *listen, "vision_model", cfg.VisionModel, "transcription_model", cfg.TranscriptionModel)
		if err := e.Start(*listen); err != nil && err != http.ErrServerClosed {
			log.Fatalw("shutting down the server", "error", err)
		}
	}()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Errorw("Failed graceful shutdown", "error", err)
	}
}
