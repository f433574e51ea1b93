package expression

import (
	"context"

	"github.com/dukex/flowhost/pkg/models"
)

// PlainText returns the expression text unchanged.
type PlainText struct{}

func NewPlainText() *PlainText {
	return &PlainText{}
}

func (*PlainText) CanEvaluate(syntax string) bool {
	return syntax == models.SyntaxPlainText
}

func (*PlainText) Evaluate(_ context.Context, text string, _ *models.Variables) (any, error) {
	return text, nil
}
