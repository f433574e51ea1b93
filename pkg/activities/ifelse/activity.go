// Package ifelse provides a two-way branching activity.
package ifelse

import (
	"context"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

const (
	Type           = "IfElse"
	FieldCondition = "condition"
	OutcomeTrue    = "True"
	OutcomeFalse   = "False"
)

// IfElse evaluates its condition and fires True or False.
type IfElse struct {
	condition expression.Typed[bool]
}

func NewIfElse(activity *models.Activity) *IfElse {
	return &IfElse{
		condition: expression.Field[bool](activity, FieldCondition, models.PlainText("false")),
	}
}

func (a *IfElse) Execute(ctx context.Context, scope protocol.Scope) (protocol.Result, error) {
	ok, err := a.condition.Resolve(ctx, scope)
	if err != nil {
		return protocol.Result{}, err
	}

	if ok {
		return protocol.Outcome(OutcomeTrue), nil
	}

	return protocol.Outcome(OutcomeFalse), nil
}
