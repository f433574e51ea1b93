// Package signal provides the activity a workflow blocks on until a trigger of the same name arrives.
package signal

import (
	"context"

	"github.com/dukex/flowhost/pkg/protocol"
)

const Type = "Signal"

// Signal completes immediately when it is the activity the trigger named.
// Reached any other way it suspends, and a later trigger resumes it.
type Signal struct{}

func (a *Signal) Execute(_ context.Context, scope protocol.Scope) (protocol.Result, error) {
	if scope.Triggered() {
		return protocol.Done(), nil
	}

	scope.Logger().Debug("Waiting for trigger", "activity_id", scope.Activity().ID, "name", scope.Activity().Name)

	return protocol.Suspend(), nil
}
