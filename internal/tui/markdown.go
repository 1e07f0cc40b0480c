package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer renders prompt markdown for the terminal. The glamour
// renderer is rebuilt only when the wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{}
}

// render falls back to the raw text if rendering fails.
func (r *markdownRenderer) render(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	if r == nil {
		return md
	}
	wrap := max(20, width-2)
	if r.renderer == nil || r.width != wrap {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return md
		}
		r.renderer, r.width = tr, wrap
	}
	out, err := r.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
