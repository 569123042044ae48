package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hems/hems/internal/config"
	"github.com/hems/hems/internal/domain/dispatch"
	"github.com/hems/hems/internal/domain/hospital"
	"github.com/hems/hems/internal/domain/patient"
	"github.com/hems/hems/internal/domain/resource"
	"github.com/hems/hems/internal/domain/staff"
	"github.com/hems/hems/internal/domain/telemedicine"
	"github.com/hems/hems/internal/domain/transfer"
	"github.com/hems/hems/internal/domain/triage"
	"github.com/hems/hems/internal/platform/apperror"
	"github.com/hems/hems/internal/platform/audit"
	"github.com/hems/hems/internal/platform/auth"
	"github.com/hems/hems/internal/platform/db"
	"github.com/hems/hems/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hems-server",
		Short: "Hospital & Emergency Management API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage access tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			name, _ := cmd.Flags().GetString("name")
			userIDStr, _ := cmd.Flags().GetString("user-id")
			facilityID, _ := cmd.Flags().GetString("facility-id")
			countyID, _ := cmd.Flags().GetString("county-id")

			if !auth.KnownRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			userID := uuid.New()
			if userIDStr != "" {
				parsed, err := uuid.Parse(userIDStr)
				if err != nil {
					return fmt.Errorf("invalid --user-id: %w", err)
				}
				userID = parsed
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(cfg.Secret(), userID, role, name, facilityID, countyID)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	issueCmd.Flags().String("role", "SUPER_ADMIN", "Role to embed in the token")
	issueCmd.Flags().String("name", "local-admin", "Display name")
	issueCmd.Flags().String("user-id", "", "User ID (random if omitted)")
	issueCmd.Flags().String("facility-id", "", "Facility scope (empty for none)")
	issueCmd.Flags().String("county-id", "", "County scope (empty for none)")

	cmd.AddCommand(issueCmd)
	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Metrics())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", middleware.MetricsHandler())

	// Repositories
	auditRepo := audit.NewRepoPG(pool)
	hospitalRepo := hospital.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	triageRepo := triage.NewRepoPG(pool)
	resourceRepo := resource.NewRepoPG(pool)
	staffRepo := staff.NewRepoPG(pool)
	shiftRepo := staff.NewShiftRepoPG(pool)
	teleRepo := telemedicine.NewRepoPG(pool)
	ambulanceRepo := dispatch.NewAmbulanceRepoPG(pool)
	dispatchRepo := dispatch.NewLogRepoPG(pool)
	responseRepo := dispatch.NewResponseRepoPG(pool)
	transferRepo := transfer.NewRepoPG(pool)

	rec := audit.NewRecorder(auditRepo, logger)

	// Services
	hospitalSvc := hospital.NewService(hospitalRepo, rec)
	patientSvc := patient.NewService(patientRepo, rec)
	triageSvc := triage.NewService(triageRepo, rec)
	resourceSvc := resource.NewService(resourceRepo, rec)
	staffSvc := staff.NewService(staffRepo, shiftRepo, rec, cfg.Secret())
	teleSvc := telemedicine.NewService(teleRepo, rec)
	dispatchSvc := dispatch.NewService(ambulanceRepo, dispatchRepo, responseRepo, rec)
	transferSvc := transfer.NewService(transferRepo, patientRepo, ambulanceRepo, rec, pool)
	auditSvc := audit.NewService(auditRepo)

	// Unauthenticated routes (login, refresh) still rate-limited.
	public := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))
	staffHandler := staff.NewHandler(staffSvc)
	staffHandler.RegisterAuthRoutes(public)

	api := e.Group("/api/v1",
		middleware.RateLimit(rateLimitCfg),
		auth.Middleware(cfg.Secret()),
	)
	hospital.NewHandler(hospitalSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	triage.NewHandler(triageSvc).RegisterRoutes(api)
	resource.NewHandler(resourceSvc).RegisterRoutes(api)
	staffHandler.RegisterRoutes(api)
	telemedicine.NewHandler(teleSvc).RegisterRoutes(api)
	dispatch.NewHandler(dispatchSvc).RegisterRoutes(api)
	transfer.NewHandler(transferSvc).RegisterRoutes(api)
	audit.NewHandler(auditSvc).RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		var serveErr error
		if cfg.TLSEnabled {
			logger.Info().Str("addr", addr).Msg("starting HTTPS server")
			serveErr = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logger.Info().Str("addr", addr).Msg("starting HTTP server")
			serveErr = e.Start(addr)
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Fatal().Err(serveErr).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	return nil
}
