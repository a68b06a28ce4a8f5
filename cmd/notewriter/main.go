package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/notewriter/internal/config"
	"github.com/ehr/notewriter/internal/domain/catalog"
	"github.com/ehr/notewriter/internal/domain/session"
	"github.com/ehr/notewriter/internal/platform/audittrail"
	"github.com/ehr/notewriter/internal/platform/auth"
	"github.com/ehr/notewriter/internal/platform/db"
	"github.com/ehr/notewriter/internal/platform/middleware"
	"github.com/ehr/notewriter/internal/platform/templatesrc"
	"github.com/ehr/notewriter/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "notewriter",
		Short:        "Clinical note assembly server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the notewriter API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(out).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// store bundles the session repository with what /health/db pings and what
// must be released on shutdown.
type store struct {
	repo   session.Repository
	pinger db.Pinger
	close  func()
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		n, err := db.NewMigrator(pool, nil).Up(ctx)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info().Int("applied", n).Msg("connected to postgres")
		return &store{repo: session.NewSessionRepoPG(pool), pinger: pool, close: pool.Close}, nil

	case config.DriverSQLite:
		repo, err := session.OpenSQLiteRepo(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return &store{repo: repo, pinger: repo, close: func() { _ = repo.Close() }}, nil

	default:
		logger.Warn().Msg("using in-memory session store; sessions are lost on restart")
		return &store{repo: session.NewMemoryRepo(), close: func() {}}, nil
	}
}

func templateSource(cfg *config.Config) templatesrc.Source {
	switch {
	case cfg.TemplateDir != "":
		return templatesrc.DirSource{Dir: cfg.TemplateDir}
	case cfg.TemplateBaseURL != "":
		return templatesrc.NewHTTPSource(cfg.TemplateBaseURL)
	default:
		return nil
	}
}

// newServer builds the echo instance with the global middleware chain and
// every route mounted.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *session.Service, hub *websocket.Hub, st *store) *echo.Echo {
	trail := audittrail.New(cfg.AuditCapacity)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.BatchBodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		jwtCfg := auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		}
		if cfg.AuthSigningKey != "" {
			jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
		}
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	e.Use(middleware.RateLimit(rl))
	e.Use(middleware.Audit(logger, trail))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(cfg.StoreDriver, st.pinger))

	apiV1 := e.Group("/api/v1")
	session.NewHandler(svc).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)
	audittrail.NewHandler(trail).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		logger.Warn().Msg("development mode: dev auth is active and every request runs as admin")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open session store")
		return err
	}
	defer st.close()

	loader := templatesrc.NewLoader(templateSource(cfg), cfg.TemplateCacheTTL, logger)
	if cfg.TemplateWatch {
		w, err := templatesrc.NewWatcher(cfg.TemplateDir, loader, logger)
		if err != nil {
			return err
		}
		w.OnChange(func(m catalog.Mode) {
			logger.Info().Str("mode", string(m)).Msg("template reloaded")
		})
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}
	if _, err := loader.Catalog(ctx); err != nil {
		logger.Warn().Err(err).Msg("template warm-up failed")
	}

	hub := websocket.NewHub(logger)
	svc := session.NewService(st.repo, loader, session.Options{
		SaveDelay: cfg.SaveDelay(),
		IdleTTL:   cfg.SessionIdleTTL,
		Events:    hub,
	}, logger)

	e := newServer(cfg, logger, svc, hub, st)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreDriver).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := svc.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to flush pending sessions")
	}
	logger.Info().Msg("server stopped")
	return nil
}
