// Package expression evaluates activity field expressions against a variable scope.
package expression

import (
	"context"

	"github.com/dukex/flowhost/pkg/models"
)

// Evaluator implements one expression syntax. Evaluate must not mutate scope
// and must return the same value for the same text and scope.
type Evaluator interface {
	CanEvaluate(syntax string) bool
	Evaluate(ctx context.Context, text string, scope *models.Variables) (any, error)
}

// Resolver evaluates an expression against a scope the caller already bound.
type Resolver interface {
	Evaluate(ctx context.Context, expr models.Expression) (any, error)
}
