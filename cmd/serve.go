package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-track/internal/config"
	"github.com/kozaktomas/class-track/internal/oracle"
	"github.com/kozaktomas/class-track/internal/state"
	"github.com/kozaktomas/class-track/internal/store/postgres"
	"github.com/kozaktomas/class-track/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Class Track web server.
The server exposes the attendance API: login, student directory, enrollment
capture flow, class sessions, and the live scan feed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildOracleProvider creates the configured verification backend. Returns
// nil when no credentials are set; scans then run on the degraded fallback.
func buildOracleProvider(ctx context.Context, cfg *config.Config) (oracle.Provider, error) {
	switch cfg.Oracle.Provider {
	case "gemini", "":
		if cfg.Gemini.APIKey == "" {
			return nil, nil
		}
		pricing := cfg.GetModelPricing("gemini-2.5-flash")
		return oracle.NewGeminiProvider(ctx, cfg.Gemini.APIKey, oracle.RequestPricing{
			Input:  pricing.Input,
			Output: pricing.Output,
		})
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, nil
		}
		pricing := cfg.GetModelPricing("gpt-4.1-mini")
		return oracle.NewOpenAIProvider(cfg.OpenAI.Token, oracle.RequestPricing{
			Input:  pricing.Input,
			Output: pricing.Output,
		}), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	snapshotRepo := postgres.NewSnapshotRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	fmt.Printf("Session persistence enabled (PostgreSQL)\n")

	ctx := context.Background()
	st, err := state.NewManager(ctx, snapshotRepo)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	provider, err := buildOracleProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("configuring verification provider: %w", err)
	}
	if provider == nil {
		fmt.Println("Warning: no verification provider configured, scans will use the degraded fallback")
	} else {
		fmt.Printf("Using %s verification provider\n", provider.Name())
	}

	server := web.NewServer(cfg, st, provider, sessionRepo)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Class Track on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
