package interactive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/veridoc/veridoc/internal/app/output"
	"github.com/veridoc/veridoc/internal/app/ui"
	"github.com/veridoc/veridoc/internal/audit"
	"github.com/veridoc/veridoc/internal/engine"
	"github.com/veridoc/veridoc/internal/report"
	"github.com/veridoc/veridoc/internal/risk"
	appver "github.com/veridoc/veridoc/internal/version"
)

// Session is an interactive analysis console over a shared engine and
// report store.
type Session struct {
	Engine *engine.Engine
	Store  audit.Store
	In     *bufio.Scanner
}

func NewSession(e *engine.Engine, store audit.Store) *Session {
	return &Session{
		Engine: e,
		Store:  store,
		In:     bufio.NewScanner(os.Stdin),
	}
}

// Run reads commands until exit or EOF. The context cancels any analysis
// in flight.
func (s *Session) Run(ctx context.Context) {
	ui.PrintGradientAsciiArt()
	fmt.Printf("%sveridoc %s interactive console. Type 'help' for commands.%s\n", ui.ColorGray, appver.Value, ui.ColorReset)

	for {
		fmt.Printf("%sveridoc > %s", ui.ColorGray, ui.ColorReset)
		if !s.In.Scan() {
			fmt.Println()
			return
		}
		input := strings.TrimSpace(s.In.Text())
		if input == "" {
			continue
		}
		if s.dispatch(ctx, input) {
			return
		}
	}
}

// dispatch runs one command and reports whether the session should end.
func (s *Session) dispatch(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "exit", "quit":
		return true
	case "clear", "cls":
		fmt.Print("\033[H\033[2J")
	case "help":
		printHelp()
	case "analyze":
		s.cmdAnalyze(ctx, args)
	case "report":
		s.cmdReport(ctx, args)
	case "reports":
		s.cmdReports(ctx, args)
	case "export":
		s.cmdExport(ctx, args)
	case "audit":
		s.cmdAudit(ctx, args)
	default:
		fmt.Printf("%sunknown command %q, try 'help'%s\n", ui.ColorYellow, cmd, ui.ColorReset)
	}
	return false
}

func printHelp() {
	fmt.Printf(`%sCommands:%s
  analyze <path> [type]   analyze a document file (type: invoice, contract, report, letter)
  report <id>             show a stored report
  reports [level]         list stored reports, optionally filtered by risk level
  export <id> [dir]       write a stored report to a JSON file
  audit <id>              show the audit trail for a document
  clear                   clear the screen
  exit                    leave the console
`, ui.ColorWhite, ui.ColorReset)
}

func (s *Session) cmdAnalyze(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Printf("%susage: analyze <path> [type]%s\n", ui.ColorYellow, ui.ColorReset)
		return
	}
	docType := ""
	if len(args) > 1 {
		docType = args[1]
	}

	doc, err := engine.DocumentFromFile(args[0], docType)
	if err != nil {
		fmt.Printf("%sread %s: %v%s\n", ui.ColorRed, args[0], err, ui.ColorReset)
		return
	}

	rep, err := s.Engine.Analyze(ctx, doc)
	if err != nil {
		var ae *risk.AggregationError
		if errors.As(err, &ae) {
			fmt.Printf("%sno component produced a usable result: %s%s\n", ui.ColorRed, ae.Reason, ui.ColorReset)
			return
		}
		fmt.Printf("%sanalysis failed: %v%s\n", ui.ColorRed, err, ui.ColorReset)
		return
	}
	output.PrintReport(rep)
}

func (s *Session) cmdReport(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Printf("%susage: report <id>%s\n", ui.ColorYellow, ui.ColorReset)
		return
	}
	rep, ok := s.fetch(ctx, args[0])
	if !ok {
		return
	}
	output.PrintReport(rep)
}

func (s *Session) cmdReports(ctx context.Context, args []string) {
	var f audit.Filter
	if len(args) > 0 {
		f.RiskLevel = report.RiskLevel(strings.ToUpper(args[0]))
	}

	reports, err := s.Store.Reports(ctx, f)
	if err != nil {
		fmt.Printf("%slist reports: %v%s\n", ui.ColorRed, err, ui.ColorReset)
		return
	}
	if len(reports) == 0 {
		fmt.Printf("%sno stored reports%s\n", ui.ColorGray, ui.ColorReset)
		return
	}
	for _, r := range reports {
		fmt.Printf(" %-36s %6.2f [%s] %s\n", r.DocumentID, r.Risk.OverallScore, r.Risk.RiskLevel, r.FileName)
	}
}

func (s *Session) cmdExport(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Printf("%susage: export <id> [dir]%s\n", ui.ColorYellow, ui.ColorReset)
		return
	}
	rep, ok := s.fetch(ctx, args[0])
	if !ok {
		return
	}
	dir := ""
	if len(args) > 1 {
		dir = args[1]
	}

	path, err := output.SaveJSONReport(dir, rep)
	if err != nil {
		fmt.Printf("%sexport: %v%s\n", ui.ColorRed, err, ui.ColorReset)
		return
	}
	fmt.Printf("%sreport written to %s%s\n", ui.ColorGreen, path, ui.ColorReset)
}

func (s *Session) cmdAudit(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Printf("%susage: audit <id>%s\n", ui.ColorYellow, ui.ColorReset)
		return
	}
	entries, err := s.Store.Entries(ctx, args[0])
	if err != nil {
		fmt.Printf("%saudit trail: %v%s\n", ui.ColorRed, err, ui.ColorReset)
		return
	}
	if len(entries) == 0 {
		fmt.Printf("%sno audit entries for %s%s\n", ui.ColorGray, args[0], ui.ColorReset)
		return
	}
	for _, e := range entries {
		fmt.Printf(" %s %-20s score %6.2f took %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Event, e.RiskScore, e.Duration.String())
	}
}

func (s *Session) fetch(ctx context.Context, id string) (*report.Report, bool) {
	rep, err := s.Store.Report(ctx, id)
	if errors.Is(err, audit.ErrNotFound) {
		fmt.Printf("%sno report for document %s%s\n", ui.ColorYellow, id, ui.ColorReset)
		return nil, false
	}
	if err != nil {
		fmt.Printf("%sfetch report: %v%s\n", ui.ColorRed, err, ui.ColorReset)
		return nil, false
	}
	return rep, true
}
