package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridoc/veridoc/internal/app/output"
	"github.com/veridoc/veridoc/internal/app/ui"
	"github.com/veridoc/veridoc/internal/audit"
	"github.com/veridoc/veridoc/internal/report"
)

var (
	reportMarkdown bool
	reportJSON     bool
	reportOut      string

	listLevel    string
	listMinScore float64
	listSince    string
	listManual   bool
	listLimit    int
)

var reportCmd = &cobra.Command{
	Use:   "report <document-id>",
	Short: "Show a stored analysis report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		rep, err := store.Report(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if reportOut != "" {
			return exportReport(rep, reportOut)
		}

		switch {
		case reportMarkdown:
			fmt.Print(report.RenderMarkdown(rep))
		case reportJSON:
			printReportJSON(rep)
		default:
			output.PrintReport(rep)
		}
		return nil
	},
}

// exportReport writes the report to path, as markdown for .md files and
// JSON otherwise. An existing file is only overwritten after confirmation.
func exportReport(rep *report.Report, path string) error {
	if _, err := os.Stat(path); err == nil {
		ok, err := ui.Confirm(fmt.Sprintf("%s exists, overwrite?", path))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("export cancelled")
			return nil
		}
	}

	var data []byte
	if strings.HasSuffix(path, ".md") || reportMarkdown {
		data = []byte(report.RenderMarkdown(rep))
	} else {
		var err error
		data, err = json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("report written to %s\n", path)
	return nil
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List stored reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		f := audit.Filter{
			RiskLevel:  report.RiskLevel(strings.ToUpper(listLevel)),
			MinScore:   listMinScore,
			ManualOnly: listManual,
			Limit:      listLimit,
		}
		if listSince != "" {
			t, err := time.Parse(time.RFC3339, listSince)
			if err != nil {
				return fmt.Errorf("parse --since: %w", err)
			}
			f.Since = t
		}

		reports, err := store.Reports(cmd.Context(), f)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Println("no stored reports match")
			return nil
		}
		for _, r := range reports {
			fmt.Printf("%-36s %s %6.2f [%s] %s\n",
				r.DocumentID, r.AnalyzedAt.Format("2006-01-02 15:04:05"), r.Risk.OverallScore, r.Risk.RiskLevel, r.FileName)
		}
		return nil
	},
}

func printReportJSON(r *report.Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	enc.Encode(r)
}

func init() {
	reportCmd.Flags().BoolVar(&reportMarkdown, "markdown", false, "Render the report as Markdown")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Write the report to a file (.md for Markdown, JSON otherwise)")
	rootCmd.AddCommand(reportCmd)

	reportsCmd.Flags().StringVar(&listLevel, "level", "", "Filter by risk level (LOW, MEDIUM, HIGH, CRITICAL)")
	reportsCmd.Flags().Float64Var(&listMinScore, "min-score", 0, "Only reports at or above this overall score")
	reportsCmd.Flags().StringVar(&listSince, "since", "", "Only reports analyzed at or after this RFC3339 timestamp")
	reportsCmd.Flags().BoolVar(&listManual, "manual-review", false, "Only reports flagged for manual review")
	reportsCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of reports to list")
	rootCmd.AddCommand(reportsCmd)
}
