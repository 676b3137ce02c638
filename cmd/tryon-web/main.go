// Command tryon-web serves the virtual try-on API locally.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/virtual-tryon/internal/api"
	"github.com/fpang/virtual-tryon/internal/chat"
	"github.com/fpang/virtual-tryon/internal/cli"
	"github.com/fpang/virtual-tryon/internal/config"
	"github.com/fpang/virtual-tryon/internal/lambdaboot"
	"github.com/fpang/virtual-tryon/internal/logging"
	"github.com/fpang/virtual-tryon/internal/studio"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

// CLI flags
var (
	portFlag         int
	modelFlag        string
	skipValidateFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "tryon-web",
	Short: "HTTP server for virtual garment try-on",
	Long: `Tryon Web starts a local server exposing the try-on workflow API.
Upload a model photo, choose garments, bind fabric swatches or catalog
pages, then generate the retextured image.

Configuration comes from the environment and an optional .env file
(GEMINI_API_KEY, TRYON_LEDGER_BACKEND, ...). Flags override it.

Examples:
  tryon-web
  tryon-web --port 9090
  tryon-web --model gemini-3-pro-image-preview`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", config.DefaultPort, "Port to listen on (overrides TRYON_PORT)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", chat.DefaultModelName, "Gemini model to use (overrides GEMINI_MODEL)")
	rootCmd.Flags().BoolVar(&skipValidateFlag, "skip-validate", false, "Skip the API key check at startup")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = modelFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cli.InitGeminiClient(ctx, !skipValidateFlag)
	if err != nil {
		return err
	}

	var awsCfg *aws.Config
	if cfg.NeedsAWS() {
		clients, err := lambdaboot.InitAWS(ctx)
		if err != nil {
			return err
		}
		awsCfg = &clients.Config
	}
	ledger, store, err := lambdaboot.OpenLedger(ctx, cfg, awsCfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	sessions := workflow.NewRegistry(cfg.SessionTTL)
	svc := studio.NewService(sessions, chat.NewGenerator(client.Models, cfg.Model), ledger, cfg.GenerationTimeout)
	server := api.NewServer(sessions, svc, ledger, api.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		OriginVerifySecret: cfg.OriginVerifySecret,
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     server.Handler(),
		ReadTimeout: 30 * time.Second,
		// Generation responses are written after the model call returns.
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go sweepSessions(ctx, sessions)

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	lambdaboot.DescribeConfig(lambdaboot.StartupLog("tryon-web", initStart), cfg, ledger).
		CommitHash(commitHash).
		Config("buildTime", buildTime).
		Config("port", fmt.Sprint(cfg.Port)).
		Feature("apiKeyValidation", !skipValidateFlag).
		Feature("originVerify", cfg.OriginVerifySecret != "").
		Log()
	fmt.Printf("\n  Try-on API: http://localhost:%d/api/health\n\n", cfg.Port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// sweepSessions drops expired sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, sessions *workflow.Registry) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Sweep()
		}
	}
}
