package setvariable

import (
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

// SetVariableFactory creates SetVariable activities.
type SetVariableFactory struct{}

func NewSetVariableFactory() protocol.ActivityFactory {
	return &SetVariableFactory{}
}

func (f *SetVariableFactory) Create(activity *models.Activity) (protocol.Activity, error) {
	return NewSetVariable(activity)
}

func (f *SetVariableFactory) ID() string {
	return Type
}

func (f *SetVariableFactory) Name() string {
	return "Set Variable"
}

func (f *SetVariableFactory) Description() string {
	return "Stores the value of an expression in a workflow variable"
}

func (f *SetVariableFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			FieldName:  map[string]any{"type": "string", "description": "Variable to write"},
			FieldValue: map[string]any{"description": "Value to store, any JSON type"},
		},
		"required": []string{FieldName, FieldValue},
	}
}
