package language

import "github.com/vektah/gqlparser/v2/ast"

// Parsed document types, re-exported so callers need not import gqlparser.
type (
	QueryDocument       = ast.QueryDocument
	OperationDefinition = ast.OperationDefinition
	Field               = ast.Field
	InlineFragment      = ast.InlineFragment
	FragmentSpread      = ast.FragmentSpread
	Position            = ast.Position
)

// Query is the only operation type an Evaluator answers.
const Query = ast.Query
