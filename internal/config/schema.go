package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// schema compiles the embedded schema in a fresh context; cue values are
// not shared between goroutines.
func schema() (*cue.Context, cue.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, cue.Value{}, fmt.Errorf("compile config schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return nil, cue.Value{}, fmt.Errorf("config schema has no #Config")
	}
	return ctx, def, nil
}

// SchemaError lists every violation of the configuration schema.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	if len(e.Problems) == 1 {
		return "config: " + e.Problems[0]
	}
	return fmt.Sprintf("config: %d schema violations, first: %s", len(e.Problems), e.Problems[0])
}

// ValidateYAML checks a configuration document against the embedded CUE
// schema without decoding it into a Config.
func ValidateYAML(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	ctx, s, err := schema()
	if err != nil {
		return err
	}
	v := s.Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		serr := &SchemaError{}
		for _, e := range cueerrors.Errors(err) {
			serr.Problems = append(serr.Problems, e.Error())
		}
		if len(serr.Problems) == 0 {
			serr.Problems = []string{err.Error()}
		}
		return serr
	}
	return nil
}
