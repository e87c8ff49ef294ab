package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/factime/factime-go/internal/adapters/audio"
	"github.com/factime/factime-go/internal/adapters/httpapi"
	"github.com/factime/factime-go/internal/adapters/media"
	"github.com/factime/factime-go/internal/adapters/rtc"
	"github.com/factime/factime-go/internal/adapters/signalws"
	"github.com/factime/factime-go/internal/app"
	"github.com/factime/factime-go/internal/config"
	"github.com/factime/factime-go/internal/domain"
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
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	acquirer, err := media.NewAcquirer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize media codecs")
	}

	sess := app.NewSession(
		acquirer,
		signalws.NewDialer(cfg.WSBaseURL),
		rtc.NewFactory(acquirer.API(), iceServers(cfg)),
		audio.NewPlayer(cfg.AudioPlayer),
		app.Config{RetryDelay: cfg.RetryDelay},
	)
	defer sess.Disconnect()

	// Echo transcript turns into the log as they land.
	entries, unsubscribe := sess.TranscriptLog().Subscribe()
	defer unsubscribe()
	go func() {
		for e := range entries {
			log.Info().Str("module", "transcript").Str("role", string(e.Role)).Str("text", e.Text).Msg("turn")
		}
	}()

	r := httpapi.SetupRouter(cfg, sess)
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Factime client started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	if cfg.UserID != "" {
		go func() {
			params := domain.SessionParams{UserID: cfg.UserID, ConsentToken: cfg.ConsentToken}
			if err := sess.Connect(ctx, params); err != nil {
				log.Error().Err(err).Str("user_id", cfg.UserID).Msg("auto-connect failed")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	sess.Disconnect()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Client exited gracefully")
}

func iceServers(cfg *config.Config) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		out = append(out, server)
	}
	return out
}
