package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridoc/veridoc/internal/app/output"
	"github.com/veridoc/veridoc/internal/app/ui"
	"github.com/veridoc/veridoc/internal/engine"
	"github.com/veridoc/veridoc/internal/risk"
)

var (
	analyzeType   string
	analyzeJSON   bool
	analyzeExport string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path> [path...]",
	Short: "Analyze one or more document files and store the reports",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := ui.WaitForCancel(cmd.Context())
		defer cancel()
		eng := engine.New(cfg, store)

		var failed int
		for _, path := range args {
			doc, err := engine.DocumentFromFile(path, analyzeType)
			if err != nil {
				fmt.Printf("%sread %s: %v%s\n", ui.ColorRed, path, err, ui.ColorReset)
				failed++
				continue
			}

			rep, err := eng.Analyze(ctx, doc)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				var ae *risk.AggregationError
				if errors.As(err, &ae) {
					fmt.Printf("%s%s: no component produced a usable result: %s%s\n", ui.ColorRed, path, ae.Reason, ui.ColorReset)
				} else {
					fmt.Printf("%s%s: %v%s\n", ui.ColorRed, path, err, ui.ColorReset)
				}
				failed++
				continue
			}

			if analyzeJSON {
				printReportJSON(rep)
			} else {
				output.PrintReport(rep)
			}
			if analyzeExport != "" {
				saved, err := output.SaveJSONReport(analyzeExport, rep)
				if err != nil {
					return fmt.Errorf("export report for %s: %w", path, err)
				}
				fmt.Printf("%sreport written to %s%s\n", ui.ColorGray, saved, ui.ColorReset)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "Document type hint (invoice, contract, report, letter)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the report as JSON instead of the console view")
	analyzeCmd.Flags().StringVar(&analyzeExport, "export", "", "Also write each report as JSON into this directory")
	rootCmd.AddCommand(analyzeCmd)
}
