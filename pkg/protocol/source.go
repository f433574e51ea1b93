package protocol

import (
	"context"

	"github.com/dukex/flowhost/pkg/models"
)

// TriggerCallback is called when a source emits a trigger.
type TriggerCallback func(ctx context.Context, activityName string, arguments *models.Variables) error

// Source represents a running producer of triggers, such as a schedule.
type Source interface {
	// Start begins emitting triggers through callback.
	Start(ctx context.Context, callback TriggerCallback) error

	// Stop gracefully shuts down the source.
	Stop(ctx context.Context) error

	// Validate checks if the source configuration is valid.
	Validate() error
}
