package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// Theme colours.
var (
	colourPrimary   = lipgloss.Color("#7C3AED") // Purple
	colourSecondary = lipgloss.Color("#06B6D4") // Cyan
	colourMuted     = lipgloss.Color("#6C7086") // Medium gray
	colourSuccess   = lipgloss.Color("#A6E3A1") // Green
	colourWarning   = lipgloss.Color("#F9E2AF") // Yellow
	colourError     = lipgloss.Color("#F38BA8") // Red
	colourBorder    = lipgloss.Color("#45475A") // Border gray
)

// styles are the lipgloss styles used for command output.
type styles struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

func newStyles() styles {
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colourPrimary),
		Section: lipgloss.NewStyle().Bold(true).Foreground(colourSecondary),
		Label:   lipgloss.NewStyle().Width(24),
		Muted:   lipgloss.NewStyle().Foreground(colourMuted),
		Success: lipgloss.NewStyle().Foreground(colourSuccess),
		Warning: lipgloss.NewStyle().Foreground(colourWarning),
		Error:   lipgloss.NewStyle().Foreground(colourError),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colourBorder).
			Padding(0, 1),
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderRunSummary formats a run report with its usage and cost.
func renderRunSummary(st styles, report *domain.RunReport) string {
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString(st.Label.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	b.WriteString(st.Title.Render("Run " + report.RunID))
	b.WriteString("\n\n")
	row("Queries", fmt.Sprintf("%d", report.Queries))
	row("Pairs analysed", fmt.Sprintf("%d", len(report.Records)))
	if report.Resumed > 0 {
		row("Reused from checkpoint", fmt.Sprintf("%d", report.Resumed))
	}
	failures := fmt.Sprintf("%d", report.Failures)
	if report.Failures > 0 {
		failures = st.Error.Render(failures)
	}
	row("Failures", failures)
	if !report.FinishedAt.IsZero() && !report.StartedAt.IsZero() {
		row("Duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String())
	}
	if report.OutputPath != "" {
		row("Results", report.OutputPath)
	}

	b.WriteString("\n")
	b.WriteString(renderUsage(st, report.Usage))

	return st.Box.Render(strings.TrimRight(b.String(), "\n"))
}

// renderUsage formats a usage summary.
func renderUsage(st styles, u domain.UsageSummary) string {
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString(st.Label.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	b.WriteString(st.Section.Render("Embedding"))
	b.WriteString("\n")
	row("  Tokens", fmt.Sprintf("%d", u.EmbeddingTokens))
	row("  Calls", fmt.Sprintf("%d", u.EmbeddingCalls))
	row("  Cost", formatCost(u.EmbeddingCost))

	b.WriteString(st.Section.Render("Completion"))
	b.WriteString("\n")
	row("  Input tokens", fmt.Sprintf("%d", u.CompletionStandardInputTokens()))
	row("  Cached input tokens", fmt.Sprintf("%d", u.CompletionCachedInputTokens))
	row("  Output tokens", fmt.Sprintf("%d", u.CompletionOutputTokens))
	row("  Calls", fmt.Sprintf("%d", u.CompletionCalls))
	row("  Cost", formatCost(u.CompletionCost))

	b.WriteString("\n")
	row("Total cost", st.Success.Render(formatCost(u.TotalCost)))
	if len(u.UnpricedModels) > 0 {
		row("Unpriced models", st.Warning.Render(strings.Join(u.UnpricedModels, ", ")))
	}

	return b.String()
}

func formatCost(usd float64) string {
	return fmt.Sprintf("$%.6f", usd)
}
