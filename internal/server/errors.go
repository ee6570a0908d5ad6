package server

import (
	"context"
	"errors"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/fieldcover/internal/evaluator"
	"github.com/hanpama/fieldcover/internal/field"
	"github.com/hanpama/fieldcover/internal/provider"
	"github.com/hanpama/fieldcover/internal/setcover"
)

type (
	gqlError     = gqlerror.Error
	gqlErrorList = gqlerror.List
)

// Error codes reported under extensions.code.
const (
	codeBadRequest   = "BAD_REQUEST"
	codeParseFailed  = "GRAPHQL_PARSE_FAILED"
	codeBadUserInput = "BAD_USER_INPUT"
	codeUncoverable  = "UNCOVERABLE_FIELDS"
	codeTimeout      = "TIMEOUT"
	codeCanceled     = "CANCELED"
	codeRateLimited  = "RATE_LIMITED"
	codeInternal     = "INTERNAL_SERVER_ERROR"
)

func requestError(code, msg string) *gqlError {
	return &gqlError{Message: msg, Extensions: map[string]any{"code": code}}
}

// toGQLError wraps an evaluation or query error. Query errors keep their
// locations, and their code when they already carry one.
func toGQLError(err error) *gqlError {
	var (
		gqlErr      *gqlerror.Error
		unknown     *field.UnknownFieldError
		uncoverable *setcover.UncoverableTargetError
		unpopulated *evaluator.UnpopulatedFieldError
	)
	code := codeInternal
	switch {
	case errors.As(err, &gqlErr):
		out := *gqlErr
		if _, ok := out.Extensions["code"]; !ok {
			out.Extensions = map[string]any{"code": codeParseFailed}
		}
		return &out
	case errors.As(err, &unknown):
		return &gqlError{
			Err:        err,
			Message:    err.Error(),
			Path:       ast.Path{ast.PathName(unknown.Field)},
			Extensions: map[string]any{"code": codeBadUserInput},
		}
	case errors.Is(err, provider.ErrInvalidInput):
		code = codeBadUserInput
	case errors.As(err, &uncoverable), errors.As(err, &unpopulated):
		code = codeUncoverable
	case errors.Is(err, context.DeadlineExceeded):
		code = codeTimeout
	case errors.Is(err, context.Canceled):
		code = codeCanceled
	}
	return &gqlError{Err: err, Message: err.Error(), Extensions: map[string]any{"code": code}}
}
