package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"saveup/internal/analysis"
	"saveup/internal/core"
	"saveup/internal/metrics"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
	ColorBlue      = lipgloss.Color("#4385BE")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	moneyStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	cashStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	upiStyle = lipgloss.NewStyle().
			Foreground(ColorBlue)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)
)

const historyDateLayout = "02 Jan 2006 15:04"

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(48).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table. The first column is left aligned,
// the others right aligned.
func RenderTable(t Table) string {
	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < numCols && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right))
		b.WriteString("\n")
	}
	line := func(cells []string, style lipgloss.Style) {
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if i == 0 {
				b.WriteString(style.Render(" " + cell + pad + " "))
			} else {
				b.WriteString(style.Render(" " + pad + cell + " "))
			}
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}

	rule("╭", "┬", "╮")
	if len(t.Headers) > 0 {
		line(t.Headers, headerStyle)
		rule("├", "┼", "┤")
	}
	for _, row := range t.Rows {
		line(row, valueStyle)
	}
	rule("╰", "┴", "╯")

	return b.String()
}

// RenderProgressBar renders percent (0-100) as a bar of the given width.
func RenderProgressBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(width, filled))

	bar := moneyStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("[%s] %.1f%%", bar, percent)
}

// Rupee renders m as "₹1,23,456".
func Rupee(m core.Money) string {
	return "₹" + m.String()
}

// RenderStatus renders the goal card: progress, pace and the exposure insight.
func RenderStatus(g core.Goal, s metrics.Summary) string {
	var b strings.Builder
	b.WriteString(RenderTitle("SAVEUP"))
	b.WriteString("\n\n")

	if !s.Active {
		b.WriteString("  No savings goal yet.\n")
		b.WriteString(mutedStyle.Render("  Set one with: saveup goal set <amount> <YYYY-MM-DD>"))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "  Goal       %s by %s\n", moneyStyle.Render(Rupee(g.TargetAmount)), g.Deadline.String())
	fmt.Fprintf(&b, "  Saved      %s\n", moneyStyle.Render(Rupee(g.SavedAmount)))
	fmt.Fprintf(&b, "  Progress   %s\n", RenderProgressBar(s.ProgressPercent, 30))
	fmt.Fprintf(&b, "  Weeks left %.1f\n", s.WeeksLeft)
	fmt.Fprintf(&b, "  Weekly     %s\n", moneyStyle.Render("₹"+core.FormatRupees(s.WeeklyTarget)))
	b.WriteString("\n")
	b.WriteString("  ")
	b.WriteString(headerStyle.Render("Insight"))
	b.WriteString("\n  ")
	b.WriteString(valueStyle.Render(s.Insight))
	b.WriteString("\n\n")

	if len(s.Recent) == 0 {
		b.WriteString(mutedStyle.Render("  No drops logged yet."))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(RenderTable(Table{
		Title:   "Recent drops",
		Headers: []string{"Date", "Method", "Amount"},
		Rows:    contributionRows(s.Recent),
	}))
	return b.String()
}

// RenderHistory renders every contribution, last added first.
func RenderHistory(contributions []core.Contribution) string {
	if len(contributions) == 0 {
		return mutedStyle.Render("  No drops logged yet.") + "\n"
	}
	var total core.Money
	for _, c := range contributions {
		total.Cents += c.Amount.Cents
	}
	rows := contributionRows(metrics.Recent(contributions, len(contributions)))
	rows = append(rows, []string{"Total", fmt.Sprintf("%d drops", len(contributions)), Rupee(total)})
	return RenderTable(Table{
		Title:   "History",
		Headers: []string{"Date", "Method", "Amount"},
		Rows:    rows,
	})
}

// RenderMessage renders coaching text, in red when it is an error fallback.
func RenderMessage(title, text string, failed bool) string {
	style := valueStyle
	if failed {
		style = errorStyle
	}
	return "  " + headerStyle.Render(title) + "\n  " + style.Render(text) + "\n"
}

// RenderCoach renders the outcome of a coach request. Refusals for missing
// data are shown as plain text, not as errors.
func RenderCoach(title, text string, err error) string {
	return RenderMessage(title, analysis.Message(text, err), analysis.Failed(err))
}

func contributionRows(cs []core.Contribution) [][]string {
	rows := make([][]string, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, []string{
			c.Date.Local().Format(historyDateLayout),
			methodLabel(c.Method),
			Rupee(c.Amount),
		})
	}
	return rows
}

func methodLabel(m core.Method) string {
	if m == core.Cash {
		return cashStyle.Render(m.Label())
	}
	return upiStyle.Render(m.Label())
}
