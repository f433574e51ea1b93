// Package setvariable provides an activity that writes a workflow variable.
package setvariable

import (
	"context"
	"errors"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

const (
	Type       = "SetVariable"
	FieldName  = "name"
	FieldValue = "value"
)

var ErrMissingName = errors.New("missing required field 'name'")

// SetVariable evaluates its value field and stores it under its name field.
type SetVariable struct {
	name  expression.Typed[string]
	value expression.Typed[any]
}

func NewSetVariable(activity *models.Activity) (*SetVariable, error) {
	if _, ok := activity.Field(FieldName); !ok {
		return nil, ErrMissingName
	}

	return &SetVariable{
		name:  expression.Field[string](activity, FieldName, models.PlainText("")),
		value: expression.Field[any](activity, FieldValue, models.PlainText("")),
	}, nil
}

func (a *SetVariable) Execute(ctx context.Context, scope protocol.Scope) (protocol.Result, error) {
	name, err := a.name.Resolve(ctx, scope)
	if err != nil {
		return protocol.Result{}, err
	}

	if name == "" {
		return protocol.Result{}, ErrMissingName
	}

	value, err := a.value.Resolve(ctx, scope)
	if err != nil {
		return protocol.Result{}, err
	}

	scope.SetVariable(name, value)

	return protocol.Done(), nil
}
