package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"copilot/internal/apihandlers"
)

var serveAddr string

// serveCmd runs the HTTP API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Knowledge Copilot HTTP API server",
	Long: `Starts the HTTP server exposing document upload, chat (streaming and
non-streaming), document management, usage statistics and Prometheus
metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		addr := appInstance.Config.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		router := apihandlers.NewRouter(appInstance)

		log.WithField("addr", addr).Info("starting Knowledge Copilot API server")
		if err := router.Run(addr); err != nil {
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr from config)")
}
