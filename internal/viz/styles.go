package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles are the lipgloss styles derived from a theme.
type Styles struct {
	Theme   Theme
	Panel   lipgloss.Style
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Hint    lipgloss.Style
	Running lipgloss.Style
	Stopped lipgloss.Style
	Alert   lipgloss.Style
	Header  lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Theme: t,
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Primary),
		Label: lipgloss.NewStyle().
			Foreground(t.Muted),
		Value: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Primary),
		Hint: lipgloss.NewStyle().
			Foreground(t.Muted).
			Italic(true),
		Running: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Success),
		Stopped: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Warning),
		Alert: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Error),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Text).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Muted),
	}
}

// DefaultStyles uses the first built-in theme.
func DefaultStyles() Styles { return NewStyles(Themes[0]) }

// PowerBar renders power in [-limit, limit] as a bar centered on zero.
func (s Styles) PowerBar(power, limit, width int) string {
	if width < 2 || limit <= 0 {
		return ""
	}
	half := width / 2
	n := power * half / limit
	if n > half {
		n = half
	}
	if n < -half {
		n = -half
	}

	left := strings.Repeat("░", half)
	right := strings.Repeat("░", width-half)
	switch {
	case n > 0:
		right = strings.Repeat("█", n) + strings.Repeat("░", width-half-n)
	case n < 0:
		left = strings.Repeat("░", half+n) + strings.Repeat("█", -n)
	}

	style := lipgloss.NewStyle().Foreground(s.Theme.Success)
	if power >= limit || power <= -limit {
		style = s.Alert
	}
	return style.Render(left + "│" + right)
}

// Sparkline renders the last width values with block characters.
func (s Styles) Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / rng * float64(len(chars)-1))
		idx = max(0, min(idx, len(chars)-1))
		b.WriteRune(chars[idx])
	}
	return lipgloss.NewStyle().Foreground(s.Theme.Accent).Render(b.String())
}

// Separator draws a muted rule.
func (s Styles) Separator(width int) string {
	if width < 7 {
		return s.Label.Render(strings.Repeat("─", max(width, 0)))
	}
	mid := width / 2
	return s.Label.Render(strings.Repeat("─", mid-3) + " ◆ " + strings.Repeat("─", width-mid-3))
}
