package admin

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/cloo-solutions/regassist/internal/api/handlers"
	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/llm"
	"github.com/cloo-solutions/regassist/internal/logger"
	"github.com/cloo-solutions/regassist/internal/repository"
	"github.com/cloo-solutions/regassist/internal/server"
	"github.com/cloo-solutions/regassist/internal/service"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the regassist API server.

The server answers from the current index of the configured backend. It
refuses to start when the index is missing or fails verification.

With --allow-missing-index a backend that has never published a build is
tolerated: /ready reports 503 and queries fail with INDEX_UNAVAILABLE until an
index is built and the server restarted. A present but misaligned build is
always fatal.`,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides REGASSIST_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("allow-missing-index", false, "Start even if no index has been built yet")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, shutdownTelemetry, err := setup()
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	pool, err := openDatabase(ctx, cfg, noMigrate)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	s3, err := openS3(ctx, cfg)
	if err != nil {
		return err
	}

	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	generator, err := llm.NewGenerator(cfg)
	if err != nil {
		return err
	}

	allowMissing, _ := cmd.Flags().GetBool("allow-missing-index")
	idx, err := openIndex(ctx, cfg, embedder, pool, s3, allowMissing)
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	if idx.manifest != nil {
		logger.Info("index loaded",
			"version", idx.manifest.Version,
			"rows", idx.manifest.Rows,
			"model", idx.manifest.EmbeddingModel,
		)
	}

	var answerOpts []service.AnswerOption
	if pool != nil {
		answerOpts = append(answerOpts, service.WithAnswerLog(repository.NewAnswerLogRepository(pool)))
	}
	answerSvc, err := service.NewAnswerService(idx.retriever, generator, cfg.TopK, answerOpts...)
	if err != nil {
		return err
	}

	pingers := llm.Pingers(embedder, generator)
	var healthOpts []handlers.HealthOption
	for _, role := range slices.Sorted(maps.Keys(pingers)) {
		healthOpts = append(healthOpts, handlers.WithDependency(role, pingers[role].Ping))
	}

	routerCfg := server.RouterConfig{
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RequestTimeout: cfg.RequestTimeout,
		HealthHandler: handlers.NewHealthHandler(func() *domain.IndexManifest {
			return idx.manifest
		}, cfg.IndexBackend, healthOpts...),
		AnswerHandler: handlers.NewAnswerHandler(answerSvc),
	}
	if cfg.AuthEnabled() {
		auth, err := service.NewStaticKeyAuth(cfg.APIKeys)
		if err != nil {
			return fmt.Errorf("invalid API_KEYS: %w", err)
		}
		routerCfg.AuthValidator = auth
		logger.Info("API key authentication enabled", "keys", auth.Len())
	} else {
		logger.Warn("no API keys configured, query endpoints are open")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"port", cfg.Port,
			"generator", generator.ModelName(),
			"embedder", embedder.ModelName(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
