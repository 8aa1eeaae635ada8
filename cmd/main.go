package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/yourusername/linkedin-connector/internal/report"
)

const (
	AppVersion = "1.0.0"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// displayWarningBanner displays a warning about the tool's purpose
func displayWarningBanner(w io.Writer) {
	banner := `
╔════════════════════════════════════════════════════════════════════════════╗
║                                                                            ║
║                    ⚠️  WARNING - EDUCATIONAL USE ONLY ⚠️                    ║
║                                                                            ║
║  Automating LinkedIn VIOLATES its Terms of Service and may get the         ║
║  account behind the session cookies restricted or banned.                  ║
║                                                                            ║
║  Use ONLY on test accounts you own.                                        ║
║                                                                            ║
╚════════════════════════════════════════════════════════════════════════════╝
`
	fmt.Fprintln(w, yellow(banner))
}

func colorStatus(s report.Status) string {
	switch s {
	case report.StatusSent, report.StatusPending, report.StatusConnected:
		return green(s)
	case report.StatusFailed:
		return red(s)
	}
	return yellow(s)
}
