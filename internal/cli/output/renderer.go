// Package output renders command results as styled text, markdown or JSON.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mode selects how results are printed.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto" // TTY=text, non-TTY=markdown
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Modes lists the accepted --format values.
var Modes = []string{string(ModeAuto), string(ModeText), string(ModeMarkdown), string(ModeJSON)}

// Renderer writes command output in the configured mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	tty    bool
	styles *Styles
}

// NewRenderer creates a renderer. An unknown mode behaves like ModeAuto.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	tty := isTerminal(out)
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		tty:    tty,
		styles: NewStyles(out, tty),
	}
}

type rendererKey struct{}

// WithRenderer returns a context carrying r.
func WithRenderer(ctx context.Context, r *Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

// FromContext returns the renderer stored by WithRenderer, or nil.
func FromContext(ctx context.Context) *Renderer {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(rendererKey{}).(*Renderer)
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto against the terminal.
func (r *Renderer) EffectiveMode() Mode {
	switch r.mode {
	case ModeText, ModeMarkdown, ModeJSON:
		return r.mode
	}
	if r.tty {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether stdout is a terminal.
func (r *Renderer) IsTTY() bool { return r.tty }

// Styles returns the text styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to standard output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success prints a success line to stderr.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.StatusSuccess.String()+" "+msg)
}

// Warning prints a warning line to stderr.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("!")+" "+msg)
}

// Error prints an error line to stderr.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.StatusFailed.String()+" "+msg)
}

// Header prints a section header in text or markdown form.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		r.Println("")
		return
	}
	style := r.styles.Header1
	if level > 1 {
		style = r.styles.Header2
	}
	r.Println(style.Render(text))
}

// Table prints rows as a box table in text mode and a pipe table in markdown.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	head := make(table.Row, len(header))
	for i, h := range header {
		head[i] = h
	}
	t.AppendHeader(head)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

// FormatHeader formats a markdown header.
func FormatHeader(level int, text string) string {
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue formats a markdown bullet with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

var titleCaser = cases.Title(language.English)

// StatusLabel turns a status such as REFERENCES_UPDATED into "References Updated".
func StatusLabel(status string) string {
	return titleCaser.String(strings.ReplaceAll(strings.ToLower(status), "_", " "))
}
