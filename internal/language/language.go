// Package language turns GraphQL-style selection documents into ordered
// field queries. Only flat selections of scalar fields are meaningful to an
// Evaluator: `query { min var: variance }` selects min and var in that
// order, with the second aliased.
package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Selected is one top-level field of an operation. Alias is the response
// key and equals Name when no alias was given.
type Selected struct {
	Alias string
	Name  string
}

// Selections returns the top-level fields of the named operation in
// document order. An empty operationName picks the only operation.
func Selections(doc *QueryDocument, operationName string) ([]Selected, error) {
	op, err := pickOperation(doc, operationName)
	if err != nil {
		return nil, err
	}
	if op.Operation != Query {
		return nil, errorAt(op.Position, "%s operations are not supported", op.Operation)
	}
	out := make([]Selected, 0, len(op.SelectionSet))
	for _, sel := range op.SelectionSet {
		switch sel := sel.(type) {
		case *Field:
			if len(sel.Arguments) > 0 {
				return nil, errorAt(sel.Position, "field %q does not take arguments", sel.Name)
			}
			if len(sel.SelectionSet) > 0 {
				return nil, errorAt(sel.Position, "field %q has no sub-fields", sel.Name)
			}
			alias := sel.Alias
			if alias == "" {
				alias = sel.Name
			}
			out = append(out, Selected{Alias: alias, Name: sel.Name})
		case *FragmentSpread:
			return nil, errorAt(sel.Position, "fragments are not supported")
		case *InlineFragment:
			return nil, errorAt(sel.Position, "fragments are not supported")
		}
	}
	return out, nil
}

func pickOperation(doc *QueryDocument, name string) (*OperationDefinition, error) {
	if len(doc.Fragments) > 0 {
		return nil, errorAt(doc.Fragments[0].Position, "fragments are not supported")
	}
	if name == "" {
		switch len(doc.Operations) {
		case 0:
			return nil, gqlerror.Errorf("document has no operations")
		case 1:
			return doc.Operations[0], nil
		default:
			return nil, gqlerror.Errorf("operation name is required when the document has %d operations", len(doc.Operations))
		}
	}
	op := doc.Operations.ForName(name)
	if op == nil {
		return nil, gqlerror.Errorf("unknown operation %q", name)
	}
	return op, nil
}

func errorAt(pos *Position, format string, args ...any) error {
	err := gqlerror.Errorf(format, args...)
	if pos != nil {
		err.Locations = []gqlerror.Location{{Line: pos.Line, Column: pos.Column}}
	}
	return err
}

// Parse is ParseQuery followed by Selections.
func Parse(source, operationName string) ([]Selected, error) {
	doc, err := ParseQuery(source)
	if err != nil {
		return nil, err
	}
	return Selections(doc, operationName)
}
