package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// bimDocument stores parameters in model.expressions of a model.bim file.
type bimDocument struct {
	path string
}

func (d *bimDocument) Format() Format { return FormatJSON }

// span is a byte range of the raw document, quotes included.
type span struct{ start, end int }

// bimExpression is one entry of model.expressions located in the raw bytes.
type bimExpression struct {
	index int
	name  string
	// parts holds the expression string, or each line when the expression
	// is stored as an array of strings.
	parts []span
}

// bimDeclaration is a parsed parameter declaration inside a bimExpression.
type bimDeclaration struct {
	part span
	text string
	decl declaration
}

// locate finds the parameter literal. The first part with a literal wins;
// the marker may sit on any line of a multi-line expression.
func (e *bimExpression) locate(data []byte) (bimDeclaration, bool, error) {
	texts := make([]string, len(e.parts))
	for i, p := range e.parts {
		if err := json.Unmarshal(data[p.start:p.end], &texts[i]); err != nil {
			return bimDeclaration{}, false, err
		}
	}
	if !hasMarker(strings.Join(texts, "\n")) {
		return bimDeclaration{}, false, nil
	}
	for i, text := range texts {
		if decl, ok := parseLiteral(text); ok {
			return bimDeclaration{part: e.parts[i], text: text, decl: decl}, true, nil
		}
	}
	return bimDeclaration{}, false, nil
}

func (d *bimDocument) Parameters() ([]Parameter, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.path, err)
	}

	exprs, err := scanExpressions(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", d.path, err)
	}

	var params []Parameter
	for _, e := range exprs {
		found, ok, err := e.locate(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: expressions[%d]: %w", d.path, e.index, err)
		}
		if !ok || e.name == "" {
			continue
		}
		params = append(params, Parameter{
			Name:     e.name,
			Value:    found.decl.value,
			Meta:     found.text[found.decl.end:],
			Location: Location{Index: e.index},
		})
	}
	return params, nil
}

func (d *bimDocument) WriteParameters(assignments []Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	info, err := os.Stat(d.path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", d.path, err)
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", d.path, err)
	}

	exprs, err := scanExpressions(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", d.path, err)
	}
	byIndex := make(map[int]*bimExpression, len(exprs))
	for i := range exprs {
		byIndex[exprs[i].index] = &exprs[i]
	}

	type patch struct {
		start, end int
		text       string
	}
	patches := make([]patch, 0, len(assignments))

	for _, a := range assignments {
		p := a.Parameter
		e, ok := byIndex[p.Location.Index]
		if !ok || e.name != p.Name {
			return &ParameterWriteError{Name: p.Name, Location: p.Location, Reason: "no expression with that name at this index"}
		}
		found, ok, err := e.locate(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", d.path, err)
		}
		if !ok {
			return &ParameterWriteError{Name: p.Name, Location: p.Location, Reason: "expression is no longer a parameter declaration"}
		}

		raw := data[found.part.start:found.part.end]
		idx, err := rawIndex(raw)
		if err != nil || len(idx)-1 != len(found.text) {
			return &ParameterWriteError{Name: p.Name, Location: p.Location, Reason: "unsupported string encoding"}
		}
		text, err := encodeStringContent(a.Value.String())
		if err != nil {
			return fmt.Errorf("failed to encode value for %q: %w", p.Name, err)
		}
		patches = append(patches, patch{
			start: found.part.start + idx[found.decl.start],
			end:   found.part.start + idx[found.decl.end],
			text:  text,
		})
	}

	// Apply back to front so earlier offsets stay valid.
	sort.Slice(patches, func(i, j int) bool { return patches[i].start > patches[j].start })
	out := data
	for i, pt := range patches {
		if i > 0 && pt.end > patches[i-1].start {
			return fmt.Errorf("overlapping parameter assignments in %s", d.path)
		}
		out = append(out[:pt.start:pt.start], append([]byte(pt.text), out[pt.end:]...)...)
	}

	if bytes.Equal(out, data) {
		return nil
	}
	if err := os.WriteFile(d.path, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.path, err)
	}
	return nil
}

// scanExpressions walks the raw document token by token and records where
// each model.expressions entry keeps its name and expression strings.
func scanExpressions(data []byte) ([]bimExpression, error) {
	s := &bimScanner{
		data:    data,
		dec:     json.NewDecoder(bytes.NewReader(data)),
		byIndex: make(map[int]*bimExpression),
	}
	s.dec.UseNumber()

	if err := s.value(nil); err != nil {
		return nil, err
	}
	if _, err := s.dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}

	out := make([]bimExpression, 0, len(s.byIndex))
	for _, e := range s.byIndex {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out, nil
}

type bimScanner struct {
	data    []byte
	dec     *json.Decoder
	byIndex map[int]*bimExpression
}

func (s *bimScanner) value(path []string) error {
	before := int(s.dec.InputOffset())
	tok, err := s.dec.Token()
	if err != nil {
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			for s.dec.More() {
				keyTok, err := s.dec.Token()
				if err != nil {
					return err
				}
				key, ok := keyTok.(string)
				if !ok {
					return fmt.Errorf("unexpected object key %v", keyTok)
				}
				if err := s.value(append(path, key)); err != nil {
					return err
				}
			}
		case '[':
			for i := 0; s.dec.More(); i++ {
				if err := s.value(append(path, strconv.Itoa(i))); err != nil {
					return err
				}
			}
		}
		// closing delimiter
		_, err := s.dec.Token()
		return err
	case string:
		start := before + bytes.IndexByte(s.data[before:], '"')
		s.visitString(path, t, span{start: start, end: int(s.dec.InputOffset())})
	}
	return nil
}

func (s *bimScanner) visitString(path []string, value string, sp span) {
	if len(path) < 4 || path[0] != "model" || path[1] != "expressions" {
		return
	}
	index, err := strconv.Atoi(path[2])
	if err != nil {
		return
	}

	e, ok := s.byIndex[index]
	if !ok {
		e = &bimExpression{index: index}
		s.byIndex[index] = e
	}

	switch {
	case path[3] == "name" && len(path) == 4:
		e.name = value
	case path[3] == "expression" && (len(path) == 4 || len(path) == 5):
		e.parts = append(e.parts, sp)
	}
}
