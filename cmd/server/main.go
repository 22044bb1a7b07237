// Command server runs the lead-qualification chat backend: the HTTP API the
// site widget talks to, the SQLite session store, the background session
// reaper, and the optional Gemini generative backend and lead delivery client.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/convia/go-leadchat-backend/internal/config"
	httpapi "github.com/convia/go-leadchat-backend/internal/http"
	"github.com/convia/go-leadchat-backend/internal/leads"
	"github.com/convia/go-leadchat-backend/internal/llm"
	"github.com/convia/go-leadchat-backend/internal/observability"
	"github.com/convia/go-leadchat-backend/internal/repo"
	"github.com/convia/go-leadchat-backend/internal/services"
	"github.com/convia/go-leadchat-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging before anything else so startup failures are structured too.
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting leadchat backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op when disabled).
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Storage.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database failed")
	}
	log.Info().Str("db_path", cfg.DBPath).Msg("database ready")

	// Generative backend (optional).
	var responder llm.Responder
	if cfg.Gemini.APIKey != "" {
		gem, err := llm.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("gemini client init failed")
		}
		defer gem.Close()
		responder = gem
		log.Info().Str("model", cfg.Gemini.Model).Msg("generative backend enabled")
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set; delegated turns answer with the fallback reply")
	}

	// Lead delivery (optional).
	var leadsClient *leads.Client
	if cfg.Lead.Endpoint != "" {
		leadsClient = leads.NewClient(cfg.Lead.Endpoint, cfg.Lead.APIKey, cfg.Lead.Timeout)
		log.Info().Str("endpoint", cfg.Lead.Endpoint).Msg("lead delivery enabled")
	} else {
		log.Warn().Msg("LEAD_ENDPOINT not set; qualified leads are recorded but not delivered")
	}

	// Background reaper for expired sessions.
	services.StartReaper(ctx, db, cfg.SessionTTL, cfg.SweepInterval)
	log.Info().Dur("session_ttl", cfg.SessionTTL).Dur("sweep_interval", cfg.SweepInterval).Msg("session reaper started")

	// HTTP.
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, responder, leadsClient, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	stop()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
