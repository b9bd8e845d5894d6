package cmd

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"copilot/internal/app"
	"copilot/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "Knowledge Copilot CLI",
	Long: `Knowledge Copilot answers questions over your documents using
retrieval-augmented generation, with per-request cost accounting.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	// PersistentPreRunE builds the shared App before any subcommand's
	// RunE and stores it in the command context.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
			log.SetLevel(level)
		}

		appInstance, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Context key type avoids collisions with other packages' keys.
type contextKey string

const appKey contextKey = "app"

// GetAppFromContext retrieves the App built by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(costCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check store connectivity and other diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Checking document store connectivity...")
		if err := appInstance.DocumentStore.Ping(ctx); err != nil {
			return fmt.Errorf("document store ping failed: %w", err)
		}
		fmt.Println("Document store connection successful.")

		fmt.Println("Checking vector index...")
		if err := appInstance.VectorIndex.Ping(ctx); err != nil {
			return fmt.Errorf("vector index ping failed: %w", err)
		}
		count, err := appInstance.VectorIndex.Count(ctx)
		if err != nil {
			return fmt.Errorf("vector index count failed: %w", err)
		}
		fmt.Printf("Vector index healthy (%d chunks indexed).\n", count)

		fmt.Printf("Completion provider: %s\n", appInstance.Completion.Name())
		fmt.Printf("Embedding provider:  %s (dimension %d)\n",
			appInstance.Embedder.Name(), appInstance.Embedder.Dimension())
		return nil
	},
}
