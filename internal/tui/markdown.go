package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// defaultRenderWidth applies before the first WindowSizeMsg arrives.
const defaultRenderWidth = 80

// markdownRenderer styles completed bot replies. A reply still revealing
// is drawn as a raw rune prefix instead (partial markup renders badly
// mid-token), so this renderer only ever sees whole messages.
//
// Glamour renderers are wrap-width bound, so resizes rebuild the
// renderer; same-width calls are a no-op.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

func newMarkdownRenderer(width int) *markdownRenderer {
	m := &markdownRenderer{}
	m.rebuild(width)
	return m
}

// rebuild swaps in a renderer for the given width. When glamour fails
// the previous renderer stays, degrading to plain text at worst.
func (m *markdownRenderer) rebuild(width int) {
	if width <= 0 {
		width = defaultRenderWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	m.renderer = r
	m.width = width
}

// UpdateWidth follows terminal resizes.
func (m *markdownRenderer) UpdateWidth(width int) {
	if m == nil || width <= 0 || width == m.width {
		return
	}
	m.rebuild(width)
}

// Render converts markdown to styled terminal output. The raw text
// comes back untouched when no renderer is available or glamour errors.
func (m *markdownRenderer) Render(text string) string {
	if m == nil || m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	// Glamour pads with a trailing newline the viewport does not want.
	return strings.TrimSuffix(out, "\n")
}
