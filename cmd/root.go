package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridoc/veridoc/internal/app/interactive"
	"github.com/veridoc/veridoc/internal/app/ui"
	"github.com/veridoc/veridoc/internal/audit"
	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/engine"
	"github.com/veridoc/veridoc/internal/logging"
	appver "github.com/veridoc/veridoc/internal/version"
)

var (
	cfgPath   string
	logLevel  string
	logFormat string
	inMemory  bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "veridoc",
	Short: "VeriDoc is a document fraud risk engine that corroborates format, structure, content, and image forensics into a deterministic risk score.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(os.Stderr, logFormat, logLevel)
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := ui.WaitForCancel(cmd.Context())
		defer cancel()
		interactive.NewSession(engine.New(cfg, store), store).Run(ctx)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("%s%v%s\n", ui.ColorRed, err, ui.ColorReset)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = appver.Value
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a TOML config file (defaults apply when absent)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().BoolVar(&inMemory, "ephemeral", false, "Keep reports in memory instead of the SQLite store")

	rootCmd.Long = ui.AsciiArt + `
VeriDoc analyzes documents for fraud indicators: forged or AI-generated
images, tampered scans, malformed structure, and suspicious content. Every
analysis produces an immutable report and an append-only audit trail.

Example:
  veridoc analyze invoice.pdf --type invoice
  veridoc reports --level HIGH
  veridoc report 4f7c... --markdown
  veridoc serve --addr :8080

Running without a subcommand starts the interactive console.
`
}

// openStore opens the configured report store. Every command that touches
// reports goes through here so the CLI and the server share one database.
func openStore() (audit.Store, error) {
	if inMemory {
		return audit.NewMemory(), nil
	}
	s, err := audit.Open(cfg.Audit.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	return s, nil
}
