package expression

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowhost/pkg/models"
)

func TestRegistry_UnknownSyntax(t *testing.T) {
	registry := NewDefaultRegistry()

	_, err := registry.Evaluate(context.Background(), models.Expression{Syntax: "cobol", Text: "x"}, models.NewVariables())

	require.Error(t, err)
	assert.True(t, IsUnknownSyntax(err))

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "cobol", evalErr.Syntax)
}

func TestRegistry_RegisterAndBind(t *testing.T) {
	registry := NewRegistry()
	_, ok := registry.Lookup(models.SyntaxPlainText)
	assert.False(t, ok)

	registry.Register(NewPlainText())

	value, err := registry.Bind(models.NewVariables()).Evaluate(context.Background(), models.PlainText("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", value)
}

func TestEvaluators(t *testing.T) {
	scope := models.NewVariables()
	scope.Set("name", "Ada")
	scope.Set("count", 2)
	scope.Set("user", map[string]any{"role": "admin"})

	tests := []struct {
		name     string
		expr     models.Expression
		expected any
	}{
		{name: "plaintext is verbatim", expr: models.PlainText("{{.name}}"), expected: "{{.name}}"},
		{name: "template renders", expr: models.Template("Hello {{.name}}"), expected: "Hello Ada"},
		{name: "template nested", expr: models.Template("{{.user.role}}"), expected: "admin"},
		{name: "template number", expr: models.Template("{{.count}}"), expected: float64(2)},
		{name: "template bool", expr: models.Template(`{{eq .name "Ada"}}`), expected: true},
		{name: "template json", expr: models.Template(`{"n": "{{.name}}"}`), expected: map[string]any{"n": "Ada"}},
		{name: "jsonata path", expr: models.JSONata("user.role"), expected: "admin"},
		{name: "jsonata arithmetic", expr: models.JSONata("count * 2"), expected: float64(4)},
		{name: "jsonata string", expr: models.JSONata(`"Hi " & name`), expected: "Hi Ada"},
	}

	registry := NewDefaultRegistry()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := registry.Evaluate(context.Background(), tt.expr, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestEvaluators_UndefinedReference(t *testing.T) {
	registry := NewDefaultRegistry()
	scope := models.VariablesFrom(map[string]any{"present": 1})

	for _, expr := range []models.Expression{
		models.Template("{{.missing}}"),
		models.JSONata("missing"),
	} {
		t.Run(expr.Syntax, func(t *testing.T) {
			_, err := registry.Evaluate(context.Background(), expr, scope)
			require.Error(t, err)
			assert.True(t, IsUndefinedReference(err), "got %v", err)
		})
	}

	_, err := registry.Evaluate(context.Background(), models.Template("{{.missing}}"), scope)

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "missing", evalErr.Reference)
}

func TestEvaluators_Invalid(t *testing.T) {
	registry := NewDefaultRegistry()

	_, err := registry.Evaluate(context.Background(), models.Template("{{.name"), models.NewVariables())
	assert.ErrorIs(t, err, ErrInvalidExpression)

	_, err = registry.Evaluate(context.Background(), models.JSONata("(("), models.NewVariables())
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestEvaluators_DeterministicAndPure(t *testing.T) {
	registry := NewDefaultRegistry()

	a := models.VariablesFrom(map[string]any{"name": "Ada"})
	b := models.VariablesFrom(map[string]any{"name": "Ada", "unused": "noise"})

	for _, expr := range []models.Expression{
		models.PlainText("name"),
		models.Template("Hi {{.name}}"),
		models.JSONata(`"Hi " & name`),
	} {
		t.Run(expr.Syntax, func(t *testing.T) {
			first, err := registry.Evaluate(context.Background(), expr, a)
			require.NoError(t, err)
			second, err := registry.Evaluate(context.Background(), expr, b)
			require.NoError(t, err)

			assert.Equal(t, first, second)
			assert.Equal(t, []string{"name"}, a.Keys(), "evaluation must not write to the scope")
		})
	}
}

func TestTemplate_Coercion(t *testing.T) {
	tests := []struct {
		rendered string
		expected any
	}{
		{rendered: "2", expected: float64(2)},
		{rendered: "-3.5", expected: -3.5},
		{rendered: "0", expected: float64(0)},
		{rendered: "true", expected: true},
		{rendered: "false", expected: false},
		{rendered: `[1, "a"]`, expected: []any{float64(1), "a"}},
		{rendered: "02134", expected: "02134"},
		{rendered: "Nan", expected: "Nan"},
		{rendered: "NaN", expected: "NaN"},
		{rendered: "inf", expected: "inf"},
		{rendered: "-Inf", expected: "-Inf"},
		{rendered: "Infinity", expected: "Infinity"},
		{rendered: "1e3", expected: "1e3"},
		{rendered: "1.50", expected: "1.50"},
		{rendered: "+1", expected: "+1"},
		{rendered: "0x10", expected: "0x10"},
		{rendered: "1_000", expected: "1_000"},
		{rendered: "True", expected: "True"},
		{rendered: "{not json}", expected: "{not json}"},
	}

	registry := NewDefaultRegistry()

	for _, tt := range tests {
		t.Run(tt.rendered, func(t *testing.T) {
			scope := models.VariablesFrom(map[string]any{"v": tt.rendered})

			value, err := registry.Evaluate(context.Background(), models.Template("{{.v}}"), scope)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)

			text, err := registry.Evaluate(context.Background(), models.Expression{Syntax: models.SyntaxTemplateText, Text: "{{.v}}"}, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.rendered, text)
		})
	}
}

func TestTemplateText_Errors(t *testing.T) {
	registry := NewDefaultRegistry()

	_, err := registry.Evaluate(context.Background(), models.Expression{Syntax: models.SyntaxTemplateText, Text: "{{.missing}}"}, models.NewVariables())
	require.Error(t, err)
	assert.True(t, IsUndefinedReference(err))

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, models.SyntaxTemplateText, evalErr.Syntax)
}
