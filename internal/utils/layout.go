package utils

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
)

// DetailBuilder builds indented key-value listings for `list` output and
// the browse detail pane.
type DetailBuilder struct {
	b            strings.Builder
	labelStyle   lipgloss.Style
	sectionStyle lipgloss.Style
	depth        int
}

// NewDetailBuilder creates a builder with a fixed-width label column.
// sectionStyle controls the rendering of section headings, labelStyle the
// label column.
func NewDetailBuilder(labelWidth int, labelStyle, sectionStyle lipgloss.Style) *DetailBuilder {
	return &DetailBuilder{
		labelStyle:   labelStyle.Width(labelWidth),
		sectionStyle: sectionStyle,
	}
}

func (d *DetailBuilder) indent() string {
	return strings.Repeat("  ", d.depth+1)
}

// Row writes a labeled key-value row at the current depth.
func (d *DetailBuilder) Row(label, value string) {
	fmt.Fprintf(&d.b, "%s%s %s\n", d.indent(), d.labelStyle.Render(label), value)
}

// Item writes a bullet line at the current depth.
func (d *DetailBuilder) Item(text string) {
	fmt.Fprintf(&d.b, "%s- %s\n", d.indent(), text)
}

// Section writes a section heading like "── title ──────...".
func (d *DetailBuilder) Section(title string) {
	pad := max(40-len(title), 4)
	heading := fmt.Sprintf("%s── %s %s", d.indent(), title, strings.Repeat("─", pad))
	d.b.WriteString(d.sectionStyle.Render(heading) + "\n")
}

// Nest runs fn with rows indented one level deeper.
func (d *DetailBuilder) Nest(fn func()) {
	d.depth++
	defer func() { d.depth-- }()
	fn()
}

// Blank writes an empty line.
func (d *DetailBuilder) Blank() {
	d.b.WriteString("\n")
}

// WriteString appends arbitrary text.
func (d *DetailBuilder) WriteString(s string) {
	d.b.WriteString(s)
}

// String returns the accumulated content.
func (d *DetailBuilder) String() string {
	return d.b.String()
}
