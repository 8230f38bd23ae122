package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	colorPass   = lipgloss.Color("#8BC34A")
	colorFail   = lipgloss.Color("#e53935")
	colorMuted  = lipgloss.Color("#7a8699")
	colorHeader = lipgloss.Color("#2196F3")
)

// MetricResult is one reported row.
type MetricResult struct {
	Device  string
	Metric  string
	Stats   Stats
	Verdict Verdict
}

// styles binds the palette to one output so color is only emitted on
// terminals.
type styles struct {
	header lipgloss.Style
	cell   lipgloss.Style
	pass   lipgloss.Style
	fail   lipgloss.Style
	sep    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true).Foreground(colorHeader).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		pass:   r.NewStyle().Bold(true).Foreground(colorPass).Padding(0, 1),
		fail:   r.NewStyle().Bold(true).Foreground(colorFail).Padding(0, 1),
		sep:    r.NewStyle().Foreground(colorMuted),
	}
}

var headers = []string{"device", "metric", "configs", "min", "max", "mean", "result"}

// Render writes a table with one line per metric. Statistics are shown
// clamped.
func Render(w io.Writer, title string, results []MetricResult) error {
	if len(results) == 0 {
		return nil
	}
	st := newStyles(w)

	rows := make([][]string, len(results))
	for i, r := range results {
		c := r.Stats.Clamped()
		verdict := "PASS"
		if !r.Verdict.Passed {
			verdict = "FAIL"
		}
		rows[i] = []string{r.Device, r.Metric, fmt.Sprint(r.Stats.Count),
			fmt.Sprintf("%.2f", c.Min), fmt.Sprintf("%.2f", c.Max), fmt.Sprintf("%.2f", c.Mean), verdict}
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	// Padding counts toward the style width.
	for i := range widths {
		widths[i] += 2
	}

	var sb strings.Builder
	if title != "" {
		sb.WriteString(st.header.Render(title))
		sb.WriteString("\n")
	}
	for i, h := range headers {
		sb.WriteString(st.header.Width(widths[i]).Render(h))
		if i < len(headers)-1 {
			sb.WriteString(st.sep.Render("|"))
		}
	}
	sb.WriteString("\n")
	for i := range headers {
		sb.WriteString(st.sep.Render(strings.Repeat("-", widths[i])))
		if i < len(headers)-1 {
			sb.WriteString(st.sep.Render("+"))
		}
	}
	sb.WriteString("\n")

	for r, row := range rows {
		for i, cell := range row {
			style := st.cell
			if i == len(row)-1 {
				style = st.pass
				if !results[r].Verdict.Passed {
					style = st.fail
				}
			}
			sb.WriteString(style.Width(widths[i]).Render(cell))
			if i < len(row)-1 {
				sb.WriteString(st.sep.Render("|"))
			}
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
