package main

import (
	"bytes"
	"fmt"
	"strings"
)

// MarkdownWriter builds a markdown document.
type MarkdownWriter struct {
	buf bytes.Buffer
}

// NewMarkdownWriter creates an empty document.
func NewMarkdownWriter() *MarkdownWriter {
	return &MarkdownWriter{}
}

// Frontmatter writes a YAML frontmatter block.
func (w *MarkdownWriter) Frontmatter(title, description string) {
	fmt.Fprintf(&w.buf, "---\ntitle: %s\ndescription: %s\n---\n\n", title, description)
}

// GeneratedMarker notes that the file must not be edited by hand.
func (w *MarkdownWriter) GeneratedMarker() {
	w.buf.WriteString("<!-- Code generated by scripts/gendocs. DO NOT EDIT. -->\n\n")
}

// Header writes a header of the given level.
func (w *MarkdownWriter) Header(level int, text string) {
	fmt.Fprintf(&w.buf, "%s %s\n\n", strings.Repeat("#", level), text)
}

// Paragraph writes a paragraph.
func (w *MarkdownWriter) Paragraph(text string) {
	w.buf.WriteString(strings.TrimSpace(text) + "\n\n")
}

// CodeBlock writes a fenced code block.
func (w *MarkdownWriter) CodeBlock(lang, code string) {
	fmt.Fprintf(&w.buf, "```%s\n%s\n```\n\n", lang, strings.TrimRight(code, "\n"))
}

// BulletList writes one bullet per item.
func (w *MarkdownWriter) BulletList(items []string) {
	for _, item := range items {
		w.buf.WriteString("- " + item + "\n")
	}
	w.buf.WriteString("\n")
}

// Table writes a pipe table. Pipes inside cells are escaped.
func (w *MarkdownWriter) Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	w.buf.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	w.buf.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		w.buf.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	w.buf.WriteString("\n")
}

// Bytes returns the document.
func (w *MarkdownWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// InlineCode wraps s in backticks.
func InlineCode(s string) string {
	return "`" + s + "`"
}

// cleanDescription collapses whitespace of a one-line description.
func cleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
