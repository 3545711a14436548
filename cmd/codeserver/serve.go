package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/caffeineduck/codeserver/httpd"
	"github.com/caffeineduck/codeserver/internal/api"
	"github.com/caffeineduck/codeserver/language"
	"github.com/caffeineduck/codeserver/language/javascript"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP code execution server",
	Long: `Start an HTTP server that runs submitted code.

Endpoints:
  GET    /                  Browser client
  GET    /status            Server status and port
  POST   /execute           Run {"code":"...","language":"python|javascript"}
  GET    /processes         Ids of running executions
  DELETE /processes/{id}    Cancel a running execution
  GET    /metrics           Execution counters
  OPTIONS *                 CORS preflight

The server stops on SIGINT or SIGTERM, cancelling running executions.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default from config, 8080)")
	serveCmd.Flags().Duration("timeout", 0, "Execution timeout (default from config, 30s)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Execution.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	exec, err := newExecutor(cfg, javascript.New())
	if err != nil {
		return fmt.Errorf("start interpreters: %w", err)
	}
	defer exec.Close()

	if !pythonAvailable(cfg) {
		logger.Warn("python interpreter not installed; python submissions will fail until it is fetched",
			zap.String("module", cfg.Runtimes.Python.Module),
			zap.String("hint", "codeserver runtime fetch"),
		)
	}

	coord := newCoordinator(cfg, exec, logger)
	srv := httpd.New(api.NewRouter(coord, api.WithLogger(logger)),
		httpd.WithLogger(logger),
		httpd.WithReadTimeout(cfg.Server.ReadTimeout),
	)

	ctx, stop := signal.NotifyContext(serveContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr, err := srv.Listen(cfg.Server.Port)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "codeserver listening on %s\n", addr)

	g, ctx := errgroup.WithContext(ctx)
	if pythonAvailable(cfg) {
		// Compile Python off the request path; the first submission would
		// otherwise pay for it.
		g.Go(func() error {
			res := exec.Run(ctx, languages(cfg)[language.Python], "pass")
			if res.Error != nil && ctx.Err() == nil {
				logger.Warn("python warm-up failed", zap.Error(res.Error))
			} else {
				logger.Debug("python warm-up done", zap.Duration("took", res.Duration))
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		err := srv.Close()
		for _, p := range coord.Processes() {
			logger.Info("cancelling execution",
				zap.String("id", p.ID),
				zap.Stringer("language", p.Language),
				zap.Duration("running", time.Since(p.StartedAt)),
			)
		}
		coord.Shutdown()
		srv.Wait()
		return err
	})
	return g.Wait()
}

// serveContext returns the command context, or Background when cobra has
// not been given one.
func serveContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
