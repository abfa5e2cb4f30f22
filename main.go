package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "staybackend/internal/config"
	intdb "staybackend/internal/db"
	router "staybackend/internal/http"
	"staybackend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "staybackend",
		Short:        "Vacation rental booking and payment reconciliation backend",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(serveCmd(), sweepCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadEnv() (intconfig.Env, error) {
	env := intconfig.LoadEnv()
	utils.ConfigureLogger(env.LogLevel, env.LogFormat, os.Stdout)
	if err := env.Validate(); err != nil {
		return env, err
	}
	return env, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the outbox dispatcher",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	} else if env.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := buildApp(cmd.Context(), env)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go app.dispatcher.Run(ctx, env.OutboxPollInterval)
	if env.CleanupInterval > 0 {
		go app.cleanup.Run(ctx, env.CleanupInterval, env.AbandonThreshold)
	}

	r := router.NewRouter(app.api, router.Options{
		Log:         app.log,
		Metrics:     app.metrics,
		CORSOrigins: env.CORSAllowedOrigins,
		CronSecret:  env.CronSecret,
	})

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.log.WithField("addr", env.AppAddr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	app.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	app.log.Info("server stopped")
	return nil
}

func sweepCmd() *cobra.Command {
	var (
		dryRun bool
		maxAge time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete abandoned (pending, unpaid) bookings once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			app, err := buildApp(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer app.Close()

			if maxAge <= 0 {
				maxAge = env.AbandonThreshold
			}
			res, err := app.cleanup.Sweep(cmd.Context(), maxAge, dryRun)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list candidates without deleting")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "minimum age of an abandoned booking (default ABANDON_THRESHOLD_MINUTES)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{intdb.MigrationUp, intdb.MigrationDown},
		RunE: func(cmd *cobra.Command, args []string) error {
			env := intconfig.LoadEnv()
			utils.ConfigureLogger(env.LogLevel, env.LogFormat, os.Stdout)
			direction := intdb.MigrationUp
			if len(args) == 1 {
				direction = args[0]
			}
			applied, err := intdb.Migrate(env.DBDSN, env.MigrationsPath, direction)
			if err != nil {
				return fmt.Errorf("migrate %s: %w", direction, err)
			}
			utils.Log.WithFields(map[string]any{"direction": direction, "applied": applied}).Info("migrations finished")
			return nil
		},
	}
}
