package expression

import (
	"context"
	"sync"

	"github.com/dukex/flowhost/pkg/models"
)

// Registry selects an evaluator by syntax. Evaluators are registered at
// startup; lookups take a read lock only.
type Registry struct {
	mu         sync.RWMutex
	evaluators []Evaluator
}

func NewRegistry(evaluators ...Evaluator) *Registry {
	return &Registry{evaluators: evaluators}
}

// NewDefaultRegistry returns a registry with the built-in syntaxes.
func NewDefaultRegistry() *Registry {
	return NewRegistry(NewPlainText(), NewTemplate(), NewTemplateText(), NewJSONata())
}

func (r *Registry) Register(evaluator Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evaluators = append(r.evaluators, evaluator)
}

// Lookup returns the first registered evaluator accepting the syntax.
func (r *Registry) Lookup(syntax string) (Evaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, evaluator := range r.evaluators {
		if evaluator.CanEvaluate(syntax) {
			return evaluator, true
		}
	}

	return nil, false
}

func (r *Registry) Evaluate(ctx context.Context, expr models.Expression, scope *models.Variables) (any, error) {
	evaluator, ok := r.Lookup(expr.Syntax)
	if !ok {
		return nil, &EvaluationError{Kind: KindUnknownSyntax, Syntax: expr.Syntax}
	}

	return evaluator.Evaluate(ctx, expr.Text, scope)
}

// Bind returns a Resolver evaluating against scope.
func (r *Registry) Bind(scope *models.Variables) Resolver {
	return &boundResolver{registry: r, scope: scope}
}

type boundResolver struct {
	registry *Registry
	scope    *models.Variables
}

func (b *boundResolver) Evaluate(ctx context.Context, expr models.Expression) (any, error) {
	return b.registry.Evaluate(ctx, expr, b.scope)
}
