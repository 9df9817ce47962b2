package model

import (
	"fmt"
	"sort"
	"strconv"
)

// Parameter is one declaration found in a semantic model.
type Parameter struct {
	Name  string
	Value Literal
	// Meta is the text following the literal, kept byte for byte.
	Meta     string
	Location Location
}

// TypeHint returns the Type="..." annotation from the metadata, if any.
func (p Parameter) TypeHint() string {
	if m := typeHint.FindStringSubmatch(p.Meta); m != nil {
		return m[1]
	}
	return ""
}

// Location points at a declaration inside its document.
type Location struct {
	// Index is the position in model.expressions (json format).
	Index int
	// File is the slash-separated table file path relative to the
	// semantic model folder (tmdl format).
	File string
	// Line is the 1-based line of the source declaration (tmdl format).
	Line int
}

func (l Location) String() string {
	if l.File != "" {
		return l.File + ":" + strconv.Itoa(l.Line)
	}
	return fmt.Sprintf("expressions[%d]", l.Index)
}

// Spec is a configured parameter: the name to fill and how to convert row values.
type Spec struct {
	Name string
	Type Kind
}

// Catalog is the set of parameters a template declares.
type Catalog struct {
	Format Format
	params []Parameter
	byName map[string]int
}

// NewCatalog indexes params by name. Duplicate names are an error.
func NewCatalog(format Format, params []Parameter) (*Catalog, error) {
	c := &Catalog{
		Format: format,
		params: params,
		byName: make(map[string]int, len(params)),
	}
	for i, p := range params {
		if prev, ok := c.byName[p.Name]; ok {
			return nil, fmt.Errorf("parameter %q declared twice (%s and %s)", p.Name, params[prev].Location, p.Location)
		}
		c.byName[p.Name] = i
	}
	return c, nil
}

// Parameters returns the catalogued parameters in document order.
func (c *Catalog) Parameters() []Parameter {
	out := make([]Parameter, len(c.params))
	copy(out, c.params)
	return out
}

// Len returns the number of parameters.
func (c *Catalog) Len() int { return len(c.params) }

// Lookup returns the parameter with the given name.
func (c *Catalog) Lookup(name string) (Parameter, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Parameter{}, false
	}
	return c.params[i], true
}

// Names returns the parameter names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.params))
	for _, p := range c.params {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every spec against the catalog and reports all unknown
// names at once.
func (c *Catalog) Validate(specs []Spec) error {
	var missing []string
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		if _, ok := c.byName[s.Name]; !ok {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		return &ParameterMismatchError{Missing: missing, Available: c.Names()}
	}
	return nil
}

// Assign builds write assignments for the given values, in document order.
func (c *Catalog) Assign(values map[string]Literal) ([]Assignment, error) {
	var missing []string
	for name := range values {
		if _, ok := c.byName[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &ParameterMismatchError{Missing: missing, Available: c.Names()}
	}

	assignments := make([]Assignment, 0, len(values))
	for _, p := range c.params {
		if v, ok := values[p.Name]; ok {
			assignments = append(assignments, Assignment{Parameter: p, Value: v})
		}
	}
	return assignments, nil
}
