package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"copilot/internal/models"
	"copilot/internal/services"
)

var (
	askModel  string
	askStream bool
)

// askCmd answers one question from the terminal through the same
// orchestrator the HTTP API uses.
var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask a question over the ingested documents",
	Long: `Runs one chat request against the ingested documents: retrieval,
confidence gating, prompt construction and generation. Streams the
answer token by token unless --stream=false.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		question := strings.Join(args, " ")
		req := models.ChatRequest{
			Messages: []models.Message{{Role: "user", Content: question}},
			Model:    askModel,
			Stream:   &askStream,
		}

		if !askStream {
			resp, err := appInstance.Chat.Chat(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("chat request failed: %w", err)
			}
			fmt.Println(resp.Response)
			if len(resp.Sources) > 0 {
				fmt.Printf("\n%s %s (confidence %.2f)\n",
					color.CyanString("Sources:"), strings.Join(resp.Sources, ", "), resp.Confidence)
			}
			return nil
		}

		sink := &terminalSink{}
		if err := appInstance.Chat.ChatStream(cmd.Context(), req, sink); err != nil {
			return fmt.Errorf("chat request failed: %w", err)
		}
		return nil
	},
}

// terminalSink prints stream events to stdout: content inline, the
// metadata summary after a blank line, errors to stderr.
type terminalSink struct{}

var _ services.StreamSink = (*terminalSink)(nil)

func (s *terminalSink) Content(text string) error {
	_, err := fmt.Print(text)
	return err
}

func (s *terminalSink) Metadata(meta models.StreamMetadata) error {
	fmt.Println()
	if len(meta.Sources) > 0 {
		fmt.Printf("\n%s %s (confidence %.2f, %s)\n",
			color.CyanString("Sources:"), strings.Join(meta.Sources, ", "),
			meta.Confidence, meta.ProcessingTime)
	}
	return nil
}

func (s *terminalSink) Error(msg string) error {
	fmt.Println()
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("ERROR:"), msg)
	return nil
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Model to use (defaults to chat.model from config)")
	askCmd.Flags().BoolVar(&askStream, "stream", true, "Stream the answer token by token")
}
