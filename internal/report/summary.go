package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"fundtracker/internal/aggregate"
)

const weightingNote = "> **Note:** Percentage change is calculated based on the weight of each stock in the mutual fund."

// DisplayName turns a fund slug into a title: "parag-parikh-flexi" becomes "Parag parikh flexi"
func DisplayName(fund string) string {
	name := strings.ToLower(strings.ReplaceAll(fund, "-", " "))
	if name == "" {
		return name
	}
	r := []rune(name)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// Markdown renders the summary document
func Markdown(reports []aggregate.FundReport) string {
	var b strings.Builder
	b.WriteString("# Mutual Fund Report Summary\n\n")
	b.WriteString("| Mutual Fund | Percentage Change | Stocks Priced |\n")
	b.WriteString("|-------------|------------------:|--------------:|\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "| %s | %s | %d/%d |\n", escapeCell(DisplayName(r.FundName)), r.Percent(), r.Priced, r.Equities)
	}
	b.WriteString("\n")
	b.WriteString(weightingNote)
	b.WriteString("\n")
	return b.String()
}

// SaveSummary writes the Markdown summary to the report file
func (s *Store) SaveSummary(reports []aggregate.FundReport) error {
	if err := os.WriteFile(s.ReportFile, []byte(Markdown(reports)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.ReportFile, err)
	}
	return nil
}

// Render formats the summary for a terminal. width <= 0 keeps glamour's default wrap.
func Render(reports []aggregate.FundReport, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(Markdown(reports))
	if err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return out, nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
