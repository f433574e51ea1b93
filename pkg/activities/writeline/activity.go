// Package writeline provides an activity that writes a line of text.
package writeline

import (
	"context"
	"fmt"
	"io"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

const (
	Type      = "WriteLine"
	FieldText = "text"
)

// WriteLine writes its text field, followed by a newline, to the factory's writer.
type WriteLine struct {
	text expression.Typed[string]
	out  io.Writer
}

func NewWriteLine(activity *models.Activity, out io.Writer) *WriteLine {
	return &WriteLine{
		text: expression.Field[string](activity, FieldText, models.PlainText("")),
		out:  out,
	}
}

func (a *WriteLine) Execute(ctx context.Context, scope protocol.Scope) (protocol.Result, error) {
	text, err := a.text.Resolve(ctx, scope)
	if err != nil {
		return protocol.Result{}, err
	}

	if _, err := fmt.Fprintln(a.out, text); err != nil {
		return protocol.Result{}, fmt.Errorf("failed to write line: %w", err)
	}

	return protocol.Done(), nil
}
