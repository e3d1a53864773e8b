package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/conlab/internal/engine"
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

// Title renders a section heading in the current theme.
func Title(text string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(CurrentTheme.Secondary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(CurrentTheme.Muted).
		Render(text)
}

func Muted(text string) string { return fg(CurrentTheme.Muted).Render(text) }

// Label renders "name value" with the value highlighted.
func Label(name string, value any) string {
	return fg(CurrentTheme.Muted).Render(name+" ") + fg(CurrentTheme.Formula).Bold(true).Render(fmt.Sprint(value))
}

// Verdict renders v coloured by outcome. Numeric agreement is shown as a
// warning since it is not a proof.
func Verdict(v engine.Verdict) string {
	switch {
	case !v.Match:
		return fg(CurrentTheme.Error).Bold(true).Render("✗ " + v.String())
	case v.Method.Proof():
		return fg(CurrentTheme.Success).Render("✓ " + v.String())
	case v.Method == engine.MethodNumeric:
		return fg(CurrentTheme.Warning).Render("~ " + v.String())
	default:
		return fg(CurrentTheme.Success).Render("✓ ") + fg(CurrentTheme.Text).Render(v.String())
	}
}

// Transcript styles derivation transcript lines: headings, verification
// results, formulas and the rest muted.
func Transcript(lines []string) string {
	var sb strings.Builder
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "=="):
			sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Primary).Render(line))
		case strings.HasPrefix(line, "verify "):
			sb.WriteString(verifyLine(strings.TrimPrefix(line, "verify ")))
		case strings.Contains(line, " = "):
			name, formula, _ := strings.Cut(line, " = ")
			sb.WriteString(fg(CurrentTheme.Text).Render(name) + Muted(" = ") + fg(CurrentTheme.Formula).Render(formula))
		default:
			sb.WriteString(Muted(line))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func verifyLine(s string) string {
	switch {
	case strings.Contains(s, "MISMATCH"):
		return fg(CurrentTheme.Error).Bold(true).Render("✗ " + s)
	case strings.Contains(s, "not a proof"):
		return fg(CurrentTheme.Warning).Render("~ " + s)
	default:
		return fg(CurrentTheme.Success).Render("✓ " + s)
	}
}

// VerdictBar renders the share of matching verdicts as a bar.
func VerdictBar(verdicts []engine.Verdict, width int) string {
	if len(verdicts) == 0 {
		return Muted(strings.Repeat("░", width))
	}
	ok := 0
	for _, v := range verdicts {
		if v.Match {
			ok++
		}
	}
	filled := ok * width / len(verdicts)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if ok == len(verdicts) {
		return fg(CurrentTheme.Success).Render(bar)
	}
	return fg(CurrentTheme.Error).Render(bar)
}

// Sparkline renders values as block characters scaled to their range.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	step := max(1, len(values)/width)

	var sb strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / span
		idx := max(0, min(int(norm*float64(len(chars)-1)), len(chars)-1))
		sb.WriteRune(chars[idx])
	}
	return fg(CurrentTheme.Formula).Render(sb.String())
}

// Box renders content in a rounded, titled panel.
func Box(title, content string, width int) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(CurrentTheme.Muted).
		Width(width).
		Padding(0, 1).
		Render(lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Secondary).Render(title) + "\n" + content)
}

func Separator(width int) string {
	mid := width / 2
	return Muted(strings.Repeat("─", max(0, mid-3)) + " ◆ " + strings.Repeat("─", max(0, width-mid-3)))
}
