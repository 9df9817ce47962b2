package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Kind is the declared type of a parameter.
type Kind string

// Supported parameter kinds.
const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindFloat   Kind = "float"
	KindBoolean Kind = "boolean"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindString, KindInteger, KindFloat, KindBoolean}

// ParseKind parses a kind name. An empty name means string.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "":
		return KindString, nil
	case KindString, KindInteger, KindFloat, KindBoolean:
		return k, nil
	}
	return "", fmt.Errorf("unknown parameter type %q (want string, integer, float or boolean)", s)
}

// UnmarshalText implements encoding.TextUnmarshaler so config decoding
// rejects unknown kinds up front.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Convert turns a raw row value into the literal written into the model.
func (k Kind) Convert(raw string) (Literal, error) {
	switch k {
	case KindString, "":
		return Literal{Text: raw, Quoted: true}, nil
	case KindInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Literal{}, fmt.Errorf("%q is not an integer", raw)
		}
		return Literal{Text: strconv.FormatInt(n, 10)}, nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Literal{}, fmt.Errorf("%q is not a finite number", raw)
		}
		return Literal{Text: strconv.FormatFloat(f, 'f', -1, 64)}, nil
	case KindBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "yes", "y", "1":
			return Literal{Text: "true"}, nil
		case "false", "no", "n", "0":
			return Literal{Text: "false"}, nil
		}
		return Literal{}, fmt.Errorf("%q is not a boolean", raw)
	}
	return Literal{}, fmt.Errorf("unknown parameter type %q", string(k))
}

// Literal is the value part of a parameter declaration.
type Literal struct {
	// Text is the unescaped value.
	Text string
	// Quoted is true for text literals ("..."), false for bare numbers and booleans.
	Quoted bool
}

// String renders the literal in expression syntax. Embedded quotes are
// doubled; control characters and "#(" are written as #(...) escapes so the
// literal always stays on one line.
func (l Literal) String() string {
	if !l.Quoted {
		return l.Text
	}
	var b strings.Builder
	b.WriteByte('"')
	text := l.Text
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			b.WriteString(`""`)
		case c == '#' && i+1 < len(text) && text[i+1] == '(':
			b.WriteString("#(#)")
		case c == '\r' && i+1 < len(text) && text[i+1] == '\n':
			b.WriteString("#(cr,lf)")
			i++
		case c == '\r':
			b.WriteString("#(cr)")
		case c == '\n':
			b.WriteString("#(lf)")
		case c == '\t':
			b.WriteString("#(tab)")
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(&b, "#(%04X)", c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// unescapeText decodes #(...) escapes inside a text literal. Sequences that
// are not valid escapes are kept as written.
func unescapeText(s string) string {
	if !strings.Contains(s, "#(") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], "#(") {
			if end := strings.IndexByte(s[i+2:], ')'); end >= 0 {
				if decoded, ok := decodeEscape(s[i+2 : i+2+end]); ok {
					b.WriteString(decoded)
					i += end + 3
					continue
				}
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// decodeEscape decodes the comma separated body of one #(...) escape.
func decodeEscape(body string) (string, bool) {
	var b strings.Builder
	for _, item := range strings.Split(body, ",") {
		switch item = strings.TrimSpace(item); item {
		case "cr":
			b.WriteByte('\r')
		case "lf":
			b.WriteByte('\n')
		case "tab":
			b.WriteByte('\t')
		case "#":
			b.WriteByte('#')
		default:
			if len(item) != 4 && len(item) != 8 {
				return "", false
			}
			code, err := strconv.ParseUint(item, 16, 32)
			if err != nil || code > unicode.MaxRune {
				return "", false
			}
			b.WriteRune(rune(code))
		}
	}
	return b.String(), true
}

var (
	metaPrefix    = regexp.MustCompile(`^\s*meta\s*\[`)
	markerPattern = regexp.MustCompile(`(?i)\bIsParameterQuery\s*=\s*true\b`)
	typeHint      = regexp.MustCompile(`\bType\s*=\s*"([^"]*)"`)
)

// declaration is the position of a literal inside an expression string.
// start and end are byte offsets; quotes are included in the span.
type declaration struct {
	start, end int
	value      Literal
}

// parseLiteral finds the leading literal of a `<literal> meta [...]`
// expression. It reports false when the expression has a different shape.
func parseLiteral(expr string) (declaration, bool) {
	i := 0
	for i < len(expr) && isSpace(expr[i]) {
		i++
	}
	if i == len(expr) {
		return declaration{}, false
	}

	d := declaration{start: i}
	if expr[i] == '"' {
		var b strings.Builder
		j := i + 1
		closed := false
		for j < len(expr) {
			if expr[j] == '"' {
				if j+1 < len(expr) && expr[j+1] == '"' {
					b.WriteByte('"')
					j += 2
					continue
				}
				j++
				closed = true
				break
			}
			b.WriteByte(expr[j])
			j++
		}
		if !closed {
			return declaration{}, false
		}
		d.end = j
		d.value = Literal{Text: unescapeText(b.String()), Quoted: true}
	} else {
		j := i
		for j < len(expr) && !isSpace(expr[j]) {
			j++
		}
		d.end = j
		d.value = Literal{Text: expr[i:j]}
	}

	if !metaPrefix.MatchString(expr[d.end:]) {
		return declaration{}, false
	}
	return d, true
}

// hasMarker reports whether metadata flags the declaration as a parameter.
func hasMarker(meta string) bool {
	return markerPattern.MatchString(meta)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
