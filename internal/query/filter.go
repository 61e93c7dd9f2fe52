// Package query provides jq-based filtering of stored documents.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
)

// Filter is a compiled jq expression used as a document predicate.
// It is safe for concurrent use.
type Filter struct {
	expression string
	code       *gojq.Code
}

// Compile parses and compiles a jq expression.
func Compile(expression string) (*Filter, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		var parseErr *gojq.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("invalid jq expression at position %d: %w", parseErr.Offset, err)
		}
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression: %w", err)
	}

	return &Filter{expression: expression, code: code}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expression
}

// Match runs the filter against doc and reports whether its first output is
// truthy, that is neither false nor null. An expression with no output does
// not match. A runtime error is returned alongside a false result.
func (f *Filter) Match(ctx context.Context, doc *jsonvalue.Object) (bool, error) {
	iter := f.code.RunWithContext(ctx, jsonvalue.ToAny(doc))
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, errors.New(formatJQError(err))
	}
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	}
	return true, nil
}

// formatJQError creates a helpful error message for jq execution errors.
// Runtime jq errors are plain errors without typed wrappers in gojq, so the
// hints rely on string matching.
func formatJQError(err error) string {
	var haltErr *gojq.HaltError
	if errors.As(err, &haltErr) {
		if haltErr.Value() == nil {
			return "query halted"
		}
		return fmt.Sprintf("query halted with: %v", haltErr.Value())
	}

	errStr := err.Error()

	var hint string
	switch {
	case strings.Contains(errStr, "cannot iterate over: null"):
		hint = " (the path may not exist in this document)"
	case strings.Contains(errStr, "cannot index") && strings.Contains(errStr, "with"):
		hint = " (field not found or wrong type)"
	}

	return errStr + hint
}
