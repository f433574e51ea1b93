package expression

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dukex/flowhost/pkg/models"
)

// Typed is an activity field bound to its declared result type when the
// activity driver is created. The expression is evaluated on every Resolve.
type Typed[T any] struct {
	Name string
	Expr models.Expression
}

// Field binds the named field of an activity. A missing field resolves to
// the fallback, which is usually a plaintext literal.
func Field[T any](activity *models.Activity, name string, fallback models.Expression) Typed[T] {
	expr, ok := activity.Field(name)
	if !ok {
		expr = fallback
	}

	return Typed[T]{Name: name, Expr: expr}
}

// Resolve evaluates the field and converts the result to T. A string field
// written in template syntax receives the rendered text unchanged.
func (f Typed[T]) Resolve(ctx context.Context, resolver Resolver) (T, error) {
	var zero T

	expr := f.Expr
	if _, ok := any(zero).(string); ok && expr.Syntax == models.SyntaxTemplate {
		expr.Syntax = models.SyntaxTemplateText
	}

	value, err := resolver.Evaluate(ctx, expr)
	if err != nil {
		return zero, err
	}

	converted, err := convert[T](value)
	if err != nil {
		return zero, &EvaluationError{Kind: KindTypeMismatch, Syntax: f.Expr.Syntax, Reference: f.Name, Err: err}
	}

	return converted, nil
}

func convert[T any](value any) (T, error) {
	var zero T

	if value == nil {
		return zero, nil
	}

	if typed, ok := value.(T); ok {
		return typed, nil
	}

	var out any

	switch any(zero).(type) {
	case string:
		out = stringify(value)
	case bool:
		b, err := toBool(value)
		if err != nil {
			return zero, err
		}

		out = b
	case float64:
		f, err := toFloat(value)
		if err != nil {
			return zero, err
		}

		out = f
	case int:
		f, err := toFloat(value)
		if err != nil {
			return zero, err
		}

		out = int(f)
	default:
		return zero, fmt.Errorf("cannot convert %T to %T", value, zero)
	}

	return out.(T), nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case string:
		return strconv.ParseBool(v)
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}
