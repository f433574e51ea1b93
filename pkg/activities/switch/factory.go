package switchactivity

import (
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

// SwitchFactory creates Switch activities.
type SwitchFactory struct{}

func NewSwitchFactory() protocol.ActivityFactory {
	return &SwitchFactory{}
}

func (f *SwitchFactory) Create(activity *models.Activity) (protocol.Activity, error) {
	return NewSwitch(activity), nil
}

func (f *SwitchFactory) ID() string {
	return Type
}

func (f *SwitchFactory) Name() string {
	return "Switch"
}

func (f *SwitchFactory) Description() string {
	return "Routes execution to the outcome whose case matches the value, or to Default"
}

func (f *SwitchFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			FieldValue: map[string]any{"type": "string", "description": "Value to match"},
		},
		"patternProperties": map[string]any{
			"^case\\..+$": map[string]any{"type": "string", "description": "Case value; the suffix is the outcome fired"},
		},
		"required": []string{FieldValue},
	}
}
