// Package switchactivity provides a multi-way branching activity.
package switchactivity

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

const (
	Type            = "Switch"
	FieldValue      = "value"
	CaseFieldPrefix = "case."
	OutcomeDefault  = "Default"
)

type switchCase struct {
	outcome string
	value   expression.Typed[string]
}

// Switch compares its value field with every "case.<Outcome>" field, in
// outcome order, and fires the first outcome that matches or Default.
type Switch struct {
	value expression.Typed[string]
	cases []switchCase
}

func NewSwitch(activity *models.Activity) *Switch {
	s := &Switch{value: expression.Field[string](activity, FieldValue, models.PlainText(""))}

	for _, name := range slices.Sorted(maps.Keys(activity.Fields)) {
		outcome, ok := strings.CutPrefix(name, CaseFieldPrefix)
		if !ok || outcome == "" {
			continue
		}

		s.cases = append(s.cases, switchCase{
			outcome: outcome,
			value:   expression.Field[string](activity, name, models.PlainText("")),
		})
	}

	return s
}

func (a *Switch) Execute(ctx context.Context, scope protocol.Scope) (protocol.Result, error) {
	value, err := a.value.Resolve(ctx, scope)
	if err != nil {
		return protocol.Result{}, err
	}

	for _, c := range a.cases {
		candidate, err := c.value.Resolve(ctx, scope)
		if err != nil {
			return protocol.Result{}, err
		}

		if candidate == value {
			return protocol.Outcome(c.outcome), nil
		}
	}

	return protocol.Outcome(OutcomeDefault), nil
}
