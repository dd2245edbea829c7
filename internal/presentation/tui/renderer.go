package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/quantfold/tessera/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// TraceMarkdown formats a run result as a markdown report for terminal
// rendering.
func TraceMarkdown(result *domain.RunResult, runErr error) string {
	var b strings.Builder

	trace := result.Trace
	fmt.Fprintf(&b, "# Pattern `%s`\n\n", trace.PatternID)
	fmt.Fprintf(&b, "Request `%s`", trace.RequestID)
	if trace.TraceID != "" {
		fmt.Fprintf(&b, " · Trace `%s`", trace.TraceID)
	}
	b.WriteString("\n\n")

	if runErr != nil {
		fmt.Fprintf(&b, "**Run failed:** %s\n\n", runErr)
	}

	b.WriteString("## Steps\n\n")
	b.WriteString("| # | Capability | Agent | Status | Duration |\n")
	b.WriteString("|---|------------|-------|--------|----------|\n")
	for _, rec := range trace.Records {
		status := string(rec.Status)
		if rec.Error != "" {
			status = fmt.Sprintf("%s (%s)", status, rec.Error)
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %dms |\n",
			rec.StepIndex, rec.Capability, rec.RoutedAgent, status, rec.DurationMS)
	}
	b.WriteString("\n")

	if len(result.Outputs) > 0 {
		b.WriteString("## Outputs\n\n```json\n")
		pretty, err := json.MarshalIndent(result.Outputs, "", "  ")
		if err != nil {
			fmt.Fprintf(&b, "%v\n", result.Outputs)
		} else {
			b.Write(pretty)
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}

	return b.String()
}
