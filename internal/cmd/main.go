package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/registry"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/relay"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/session"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/words"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/gateway"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := loadConfig(getEnv("CONFIG_PATH", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	clk := clockwork.NewRealClock()
	catalog := words.Default(time.Now().UnixNano())

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	// Optional NATS relay mirroring room broadcasts to external consumers.
	var pub *relay.Publisher
	sinkFor := func(code string) session.Sink {
		return gateway.NewRoomSink(cm, code)
	}
	if cfg.Relay.Enabled {
		relayCfg := relay.DefaultConfig()
		relayCfg.URL = cfg.Relay.URL
		if cfg.Relay.SubjectPrefix != "" {
			relayCfg.SubjectPrefix = cfg.Relay.SubjectPrefix
		}
		pub, err = relay.NewPublisher(relayCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event relay")
		}
		defer pub.Close()
		sinkFor = func(code string) session.Sink {
			return relay.Tee(gateway.NewRoomSink(cm, code), pub)
		}
		log.Info().Str("nats_url", cfg.Relay.URL).Msg("event relay enabled")
	}

	reg := registry.New(clk, catalog, sinkFor, time.Now().UnixNano())
	svc := gateway.NewService(cm, reg, clk, cfg.Server.GracePeriod)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		stats := svc.Stats()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"service":"pictionary-musical","connections":%d}`,
			stats["total_connections"])
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      corsHandler.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go cm.Start(ctx)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("shutdown complete")
}

func allowedOrigins(cfg *Config) []string {
	if len(cfg.Server.AllowOrigins) > 0 {
		return cfg.Server.AllowOrigins
	}
	return []string{"*"}
}
