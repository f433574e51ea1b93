package join

import (
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

// JoinFactory creates Join activities.
type JoinFactory struct{}

func NewJoinFactory() protocol.ActivityFactory {
	return &JoinFactory{}
}

func (f *JoinFactory) Create(activity *models.Activity) (protocol.Activity, error) {
	return NewJoin(activity), nil
}

func (f *JoinFactory) ID() string {
	return Type
}

func (f *JoinFactory) Name() string {
	return "Join"
}

func (f *JoinFactory) Description() string {
	return "Waits for all (or any) incoming connections before continuing"
}

func (f *JoinFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			FieldMode: map[string]any{
				"type":    "string",
				"enum":    []string{ModeAll, ModeAny},
				"default": ModeAll,
			},
		},
	}
}
