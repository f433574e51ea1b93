package ifelse

import (
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

// IfElseFactory creates IfElse activities.
type IfElseFactory struct{}

func NewIfElseFactory() protocol.ActivityFactory {
	return &IfElseFactory{}
}

func (f *IfElseFactory) Create(activity *models.Activity) (protocol.Activity, error) {
	return NewIfElse(activity), nil
}

func (f *IfElseFactory) ID() string {
	return Type
}

func (f *IfElseFactory) Name() string {
	return "If/Else"
}

func (f *IfElseFactory) Description() string {
	return "Routes execution to the True or False outcome based on a boolean expression"
}

func (f *IfElseFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			FieldCondition: map[string]any{
				"type":        "boolean",
				"description": "Condition to evaluate",
				"examples":    []string{"{{gt .amount 100.0}}", "amount > 100"},
			},
		},
		"required": []string{FieldCondition},
	}
}
