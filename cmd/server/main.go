package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Bridge/internal/adapters/http"
	"github.com/dkeye/Bridge/internal/adapters/livekit"
	"github.com/dkeye/Bridge/internal/adapters/plivo"
	"github.com/dkeye/Bridge/internal/app"
	"github.com/dkeye/Bridge/internal/config"
	"github.com/dkeye/Bridge/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	reg := app.NewRegistry()
	calls := app.NewCallLog()
	m := metrics.New(prometheus.DefaultRegisterer)
	connector := livekit.NewConnector(cfg.LiveKit, cfg.RoomRate)

	answerURL := strings.TrimSuffix(cfg.PublicURL, "/") + "/plivo/answer"
	dialer, err := plivo.NewDialer(cfg.Plivo, answerURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build telephony client")
	}

	r := router.SetupRouter(ctx, router.Deps{
		Config:    cfg,
		Registry:  reg,
		Connector: connector,
		Dialer:    dialer,
		CallLog:   calls,
		Metrics:   m,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("ws_url", cfg.StreamWSURL()).Msg("Bridge server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
