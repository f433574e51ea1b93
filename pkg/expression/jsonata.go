package expression

import (
	"context"
	"encoding/json"
	"errors"

	jsonata "github.com/blues/jsonata-go"

	"github.com/dukex/flowhost/pkg/models"
)

// JSONata evaluates JSONata queries with the scope as input document.
type JSONata struct{}

func NewJSONata() *JSONata {
	return &JSONata{}
}

func (*JSONata) CanEvaluate(syntax string) bool {
	return syntax == models.SyntaxJSONata
}

func (*JSONata) Evaluate(_ context.Context, text string, scope *models.Variables) (any, error) {
	expr, err := jsonata.Compile(text)
	if err != nil {
		return nil, invalid(models.SyntaxJSONata, err)
	}

	// jsonata-go expects the shapes produced by encoding/json.
	data, err := json.Marshal(scope)
	if err != nil {
		return nil, invalid(models.SyntaxJSONata, err)
	}

	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, invalid(models.SyntaxJSONata, err)
	}

	result, err := expr.Eval(input)
	if err != nil {
		if errors.Is(err, jsonata.ErrUndefined) {
			return nil, undefinedReference(models.SyntaxJSONata, text, err)
		}

		return nil, invalid(models.SyntaxJSONata, err)
	}

	return result, nil
}
