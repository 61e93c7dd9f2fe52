package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/alfredjeanlab/modelbase/internal/model"
)

//go:embed definition.schema.json
var definitionSchemaJSON []byte

const definitionSchemaURL = "definition.schema.json"

var (
	definitionSchemaOnce sync.Once
	definitionSchema     *jsonschema.Schema
	definitionSchemaErr  error
)

// printer renders jsonschema error kinds in English.
var printer = message.NewPrinter(language.English)

// DefinitionError lists the problems found in an untrusted definition
// payload, one "path: message" entry each, sorted.
type DefinitionError struct {
	Problems []string
}

func (e *DefinitionError) Error() string {
	return "invalid model definition: " + strings.Join(e.Problems, "; ")
}

func compiledDefinitionSchema() (*jsonschema.Schema, error) {
	definitionSchemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal(definitionSchemaJSON, &doc); err != nil {
			definitionSchemaErr = fmt.Errorf("parsing definition schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(definitionSchemaURL, doc); err != nil {
			definitionSchemaErr = fmt.Errorf("adding definition schema: %w", err)
			return
		}
		definitionSchema, definitionSchemaErr = c.Compile(definitionSchemaURL)
	})
	return definitionSchema, definitionSchemaErr
}

// ParseDefinition decodes a definition that did not come from inference,
// such as an import or a restored backup. The payload is checked against the
// definition meta-schema, then against the structural invariants of
// model.ModelDefinition.Check.
func ParseDefinition(raw []byte) (*model.ModelDefinition, error) {
	sch, err := compiledDefinitionSchema()
	if err != nil {
		return nil, err
	}
	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if err := sch.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, &DefinitionError{Problems: leafProblems(ve)}
		}
		return nil, fmt.Errorf("validating definition: %w", err)
	}
	var def model.ModelDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if err := def.Check(); err != nil {
		return nil, err
	}
	return &def, nil
}

func leafProblems(err *jsonschema.ValidationError) []string {
	seen := make(map[string]bool)
	collectLeaves(err, seen)
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func collectLeaves(err *jsonschema.ValidationError, seen map[string]bool) {
	if err.ErrorKind != nil && len(err.Causes) == 0 {
		msg := err.ErrorKind.LocalizedString(printer)
		if !strings.HasPrefix(msg, "$ref ") && !strings.HasPrefix(msg, "doesn't validate with") {
			seen["/"+strings.Join(err.InstanceLocation, "/")+": "+msg] = true
		}
	}
	for _, cause := range err.Causes {
		collectLeaves(cause, seen)
	}
}
