// Package join provides an explicit fan-in activity.
package join

import (
	"context"
	"fmt"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

const (
	Type      = "Join"
	FieldMode = "mode"
	ModeAll   = "all" // Fire once every incoming connection has arrived
	ModeAny   = "any" // Fire on the first arrival of each pass
)

// Join records each arrival on the instance and fires Done only when its
// mode is satisfied. Arrivals survive suspension of other branches, so
// predecessors may arrive in different passes.
type Join struct {
	mode expression.Typed[string]
}

func NewJoin(activity *models.Activity) *Join {
	return &Join{mode: expression.Field[string](activity, FieldMode, models.PlainText(ModeAll))}
}

func (a *Join) Execute(ctx context.Context, scope protocol.Scope) (protocol.Result, error) {
	mode, err := a.mode.Resolve(ctx, scope)
	if err != nil {
		return protocol.Result{}, err
	}

	switch mode {
	case ModeAny:
		return protocol.Done(), nil
	case ModeAll:
	default:
		return protocol.Result{}, fmt.Errorf("unknown join mode %q", mode)
	}

	arrived := scope.RecordArrival()
	incoming := scope.Incoming()

	if len(arrived) < len(incoming) {
		scope.Logger().Debug("Join waiting",
			"activity_id", scope.Activity().ID,
			"arrived", len(arrived),
			"expected", len(incoming),
		)

		return protocol.Halt(), nil
	}

	scope.ResetArrivals()

	return protocol.Done(), nil
}
