// Sparkweek - weekly experience discovery server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/sparkweek/internal/api"
	"github.com/ashureev/sparkweek/internal/app"
	"github.com/ashureev/sparkweek/internal/assembly"
	"github.com/ashureev/sparkweek/internal/catalog"
	"github.com/ashureev/sparkweek/internal/config"
	"github.com/ashureev/sparkweek/internal/expiry"
	"github.com/ashureev/sparkweek/internal/identity"
	"github.com/ashureev/sparkweek/internal/middleware"
	"github.com/ashureev/sparkweek/internal/profile"
	"github.com/ashureev/sparkweek/internal/relay"
	"github.com/ashureev/sparkweek/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sparkweek",
		Short:         "Sparkweek - a week of new experiences",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if err := godotenv.Load(); err != nil {
				slog.Debug("No .env file found, using environment variables")
			}
		},
		RunE: runServe,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the expiry worker",
		RunE:  runServe,
	}

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the built-in experience catalog",
		RunE:  runCatalog,
	}

	var resetUser string
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the stored profile and package for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReset(cmd, resetUser)
		},
	}
	resetCmd.Flags().StringVar(&resetUser, "user", "", "anonymous user id to clear")
	_ = resetCmd.MarkFlagRequired("user")

	root.AddCommand(serveCmd, catalogCmd, resetCmd)
	return root
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, exp := range cat.All() {
		fmt.Fprintf(out, "%s\t%s\t%d steps\n", exp.ID, exp.Title, exp.StepCount())
	}
	return nil
}

func runReset(cmd *cobra.Command, userID string) error {
	if !identity.IsValidAnonID(userID) {
		return fmt.Errorf("invalid user id %q", userID)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	if err := repo.Clear(cmd.Context(), userID); err != nil {
		return fmt.Errorf("failed to clear user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", userID)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.Debug)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	slog.Info("Catalog loaded", "experiences", cat.Len())

	var backend relay.Backend
	gemini, err := relay.NewGeminiBackend(ctx, cfg.Relay.APIKey, cfg.Relay.Model)
	switch {
	case errors.Is(err, relay.ErrNotConfigured):
		slog.Info("AI features disabled (GEMINI_API_KEY not set)")
	case err != nil:
		slog.Warn("Failed to create Gemini backend, AI features will be disabled", "error", err)
	default:
		backend = gemini
		slog.Info("Gemini backend ready", "model", cfg.Relay.Model)
	}
	rel := relay.New(backend, cfg.Relay.Timeout)

	svc := app.NewService(app.Config{
		Store:       repo,
		Catalog:     cat,
		Assembler:   assembly.New(cat, assembly.WithSize(cfg.Discovery.PackageSize)),
		Relay:       rel,
		Extractor:   profile.NewExtractor(rel),
		MinMessages: cfg.Discovery.MinMessages,
	})
	defer svc.Close()

	opts := api.OptionsFromConfig(cfg)
	opts.AIEnabled = rel.Configured()
	h := api.NewHandler(svc, cat, rel, repo, opts)
	defer h.Close()

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSOrigins, identity.SessionHeaderName))
	r.Use(identity.Middleware(cfg.IsDevelopment()))
	h.RegisterRoutes(r)

	// SSE streams stay open, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return expiry.NewWorker(repo, cfg.Expiry.Schedule).Run(gctx)
	})
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped successfully")
	return nil
}
