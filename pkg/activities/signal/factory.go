package signal

import (
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

// SignalFactory creates Signal activities.
type SignalFactory struct{}

func NewSignalFactory() protocol.ActivityFactory {
	return &SignalFactory{}
}

func (f *SignalFactory) Create(*models.Activity) (protocol.Activity, error) {
	return &Signal{}, nil
}

func (f *SignalFactory) ID() string {
	return Type
}

func (f *SignalFactory) Name() string {
	return "Signal"
}

func (f *SignalFactory) Description() string {
	return "Starts a workflow, or blocks it until a trigger with the activity name is delivered"
}

func (f *SignalFactory) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
