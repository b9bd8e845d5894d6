package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"copilot/internal/clix"
	"copilot/internal/models"
)

var (
	costLogsLimit  int
	costLogsOffset int
	costWindow     string
)

// costCmd is the base command for cost accounting operations.
var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "View AI usage costs and optimization suggestions",
	Long:  `Provides subcommands to view the session cost summary, per-model analysis, optimization suggestions and the raw cost log.`,
}

// costSummaryCmd shows the current session's aggregates.
var costSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the current session's request and cost summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		snap := appInstance.Analyzer.SessionSnapshot()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Session Cost Summary")
		fmt.Fprintln(w, "--------------------")
		fmt.Fprintf(w, "Total requests:\t%d\n", snap.TotalRequests)
		fmt.Fprintf(w, "Successful:\t%d\n", snap.SuccessfulRequests)
		fmt.Fprintf(w, "Failed:\t%d\n", snap.FailedRequests)
		fmt.Fprintf(w, "Total cost:\t$%.4f\n", snap.TotalCost)
		fmt.Fprintf(w, "Total tokens:\t%d\n", snap.TotalTokens)
		fmt.Fprintf(w, "Avg latency:\t%.3fs\n", snap.AvgLatency)
		fmt.Fprintf(w, "P95 latency:\t%.3fs\n", snap.P95Latency)
		fmt.Fprintf(w, "Error rate:\t%.2f%%\n", snap.ErrorRate*100)
		return w.Flush()
	},
}

// costAnalyzeCmd aggregates the persisted cost log per model.
var costAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the persisted cost log per model",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		window, err := clix.ParseWindow(cmd.Flags())
		if err != nil {
			return err
		}

		analysis, err := appInstance.Analyzer.Analyze(window)
		if err != nil {
			if errors.Is(err, models.ErrNoCostLogs) {
				fmt.Println("No cost logs found.")
				return nil
			}
			return fmt.Errorf("failed to analyze cost log: %w", err)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Model", "Requests", "Total Cost", "Avg Cost/Req", "Total Tokens", "Avg Latency"})
		table.SetBorder(true)
		for model, s := range analysis.CostByModel {
			table.Append([]string{
				model,
				strconv.Itoa(s.Requests),
				fmt.Sprintf("$%.4f", s.TotalCost),
				fmt.Sprintf("$%.6f", s.AvgCostPerRequest),
				strconv.Itoa(s.TotalTokens),
				fmt.Sprintf("%.3fs", s.AvgLatency),
			})
		}
		table.Render()

		fmt.Printf("\nTotal: %d requests, $%.4f\n", analysis.TotalRequests, analysis.TotalCost)
		return nil
	},
}

// costOptimizeCmd prints the advisor's suggestions.
var costOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Show cost optimization suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		report, err := appInstance.Advisor.Suggest()
		if err != nil {
			if errors.Is(err, models.ErrNoCostLogs) {
				fmt.Println("Not enough data for optimization suggestions.")
				return nil
			}
			return fmt.Errorf("failed to build optimization report: %w", err)
		}

		fmt.Println(color.CyanString("Suggestions:"))
		for _, s := range report.Suggestions {
			fmt.Printf("  - %s\n", s)
		}

		if len(report.PotentialSavings) > 0 {
			fmt.Println()
			fmt.Println(color.CyanString("Potential savings:"))
			for _, est := range report.PotentialSavings {
				fmt.Printf("  - %s -> %s: %s (%d%% of current spend)\n",
					est.From, est.To,
					color.GreenString("$%.4f", est.EstimatedSavings),
					est.Percentage)
			}
		}
		return nil
	},
}

// costLogsCmd pages through the persisted log, newest first.
var costLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List recent cost log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		entries, err := appInstance.Analyzer.RecentEntries(pagination.Limit, pagination.Offset)
		if err != nil {
			if errors.Is(err, models.ErrNoCostLogs) {
				fmt.Println("No cost logs found.")
				return nil
			}
			return fmt.Errorf("failed to read cost log: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No entries in the requested range.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Timestamp", "Model", "Type", "Tokens", "Cost", "Latency", "Status"})
		table.SetBorder(true)
		for _, e := range entries {
			status := "ok"
			if !e.Success {
				status = "error"
			}
			table.Append([]string{
				e.Timestamp,
				e.Model,
				string(e.RequestType),
				strconv.Itoa(e.TotalTokens),
				fmt.Sprintf("$%.6f", e.TotalCost),
				fmt.Sprintf("%.3fs", e.LatencySeconds),
				status,
			})
		}
		table.Render()

		fmt.Printf("\nDisplayed %d entries.\n", len(entries))
		return nil
	},
}

func init() {
	costCmd.AddCommand(costSummaryCmd)
	costCmd.AddCommand(costAnalyzeCmd)
	costCmd.AddCommand(costOptimizeCmd)
	costCmd.AddCommand(costLogsCmd)

	costAnalyzeCmd.Flags().StringVar(&costWindow, "window", "", "Time window to analyze (accepted but not applied yet)")
	costLogsCmd.Flags().IntVarP(&costLogsLimit, "limit", "l", 50, "Number of entries to display")
	costLogsCmd.Flags().IntVarP(&costLogsOffset, "offset", "o", 0, "Number of entries to skip")

	// costCmd itself is attached to rootCmd in root.go.
}
