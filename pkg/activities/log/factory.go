package log

import (
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

// LogFactory creates Log activities.
type LogFactory struct{}

// NewLogFactory creates a new factory instance.
func NewLogFactory() protocol.ActivityFactory {
	return &LogFactory{}
}

func (f *LogFactory) Create(activity *models.Activity) (protocol.Activity, error) {
	return NewLog(activity), nil
}

func (f *LogFactory) ID() string {
	return Type
}

func (f *LogFactory) Name() string {
	return "Log"
}

func (f *LogFactory) Description() string {
	return "Logs messages at different levels (debug, info, warn, error) with expression support for dynamic content"
}

func (f *LogFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			FieldMessage: map[string]any{
				"type":        "string",
				"description": "Message to log",
				"examples": []string{
					"Processing user: {{.user_name}}",
					"Order {{.order_id}} approved",
				},
			},
			FieldLevel: map[string]any{
				"type":    "string",
				"enum":    []string{"debug", "info", "warn", "error"},
				"default": "info",
			},
		},
		"required": []string{FieldMessage},
	}
}
