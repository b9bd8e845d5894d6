package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"copilot/internal/extract"
)

// ingestCmd adds local files through the same pipeline as POST /upload.
var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest local files or directories into the knowledge base",
	Long: `Extracts, chunks, embeds and indexes local .pdf, .md and .txt files.
Directories are walked recursively; unsupported files are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()
		ctx := cmd.Context()

		var files []extract.FileMeta
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("cannot stat %s: %w", path, err)
			}
			if info.IsDir() {
				found, err := extract.DiscoverSupportedFiles(ctx, path)
				if err != nil {
					return fmt.Errorf("failed to scan directory %s: %w", path, err)
				}
				files = append(files, found...)
				continue
			}
			if !extract.Supported(path) {
				fmt.Printf("  - %s %s: unsupported file type\n", color.YellowString("Skipped"), path)
				continue
			}
			meta, err := extract.StatFile(path)
			if err != nil {
				return fmt.Errorf("cannot stat %s: %w", path, err)
			}
			files = append(files, meta)
		}

		if len(files) == 0 {
			fmt.Println("No ingestible files found.")
			return nil
		}

		var added, failed int
		for _, f := range files {
			data, err := os.ReadFile(f.Path)
			if err != nil {
				fmt.Printf("  - %s %s: %v\n", color.RedString("ERROR"), f.Path, err)
				failed++
				continue
			}
			text, err := extract.Text(f.Name, data)
			if err != nil {
				fmt.Printf("  - %s %s: %v\n", color.RedString("ERROR"), f.Path, err)
				failed++
				continue
			}
			result, err := appInstance.Engine.AddDocument(ctx, f.Name, extract.ContentType(f.Name), text)
			if err != nil {
				fmt.Printf("  - %s %s: %v\n", color.RedString("ERROR"), f.Path, err)
				failed++
				continue
			}
			fmt.Printf("  - %s %s (%d chunks, id %s)\n",
				color.GreenString("Ingested"), f.Path, result.ChunksCreated, result.DocumentID)
			added++
		}

		fmt.Printf("\nIngested %d of %d files (%d failed).\n", added, len(files), failed)
		if failed > 0 {
			return fmt.Errorf("%d files failed to ingest", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
