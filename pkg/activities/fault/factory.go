package fault

import (
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

// FaultFactory creates Fault activities.
type FaultFactory struct{}

func NewFaultFactory() protocol.ActivityFactory {
	return &FaultFactory{}
}

func (f *FaultFactory) Create(activity *models.Activity) (protocol.Activity, error) {
	return NewFault(activity), nil
}

func (f *FaultFactory) ID() string {
	return Type
}

func (f *FaultFactory) Name() string {
	return "Fault"
}

func (f *FaultFactory) Description() string {
	return "Faults the current pass with a message"
}

func (f *FaultFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			FieldMessage: map[string]any{"type": "string"},
		},
	}
}
