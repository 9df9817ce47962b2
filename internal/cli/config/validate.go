package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leapstack-labs/pbipgen/internal/project"
)

// ValidationError lists every configuration problem found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration:\n  - " + strings.Join(e.Problems, "\n  - ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration and reports all problems together.
func (c *Config) Validate() error {
	var problems []string

	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validation failed: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	seen := make(map[string]bool, len(c.Parameters))
	for _, p := range c.Parameters {
		if p.Name != "" && seen[p.Name] {
			problems = append(problems, fmt.Sprintf("parameters: %q is listed twice", p.Name))
		}
		seen[p.Name] = true
	}

	if err := project.ValidatePatterns(c.Cache.Patterns); err != nil {
		problems = append(problems, "cache.patterns: "+err.Error())
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// describe renders a field error with its config key.
func describe(fe validator.FieldError) string {
	// Namespace is "Config.output.directory"; drop the root type.
	key := fe.Namespace()
	if i := strings.Index(key, "."); i >= 0 {
		key = key[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fmt.Sprint(fe.Value()))
	case "gte", "lte":
		return fmt.Sprintf("%s must be %s %s, got %v", key, map[string]string{"gte": ">=", "lte": "<="}[fe.Tag()], fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %q validation", key, fe.Tag())
}

// RequireTemplate checks that a template is configured and exists.
func (c *Config) RequireTemplate() error {
	if c.Template == "" {
		return fmt.Errorf("no template configured\nHint: Set 'template' in pbipgen.yaml or pass --template")
	}
	if _, err := os.Stat(c.Template); err != nil {
		return fmt.Errorf("template %s does not exist\nHint: Point 'template' at the folder holding the .pbip file", c.Template)
	}
	return nil
}

// RequireData checks that a data file is configured and exists.
func (c *Config) RequireData() error {
	if c.Data == "" {
		return fmt.Errorf("no data file configured\nHint: Set 'data' in pbipgen.yaml or pass --data")
	}
	if _, err := os.Stat(c.Data); err != nil {
		return fmt.Errorf("data file %s does not exist", c.Data)
	}
	return nil
}
