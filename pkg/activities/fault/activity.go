// Package fault provides an activity that faults the workflow on purpose.
package fault

import (
	"context"
	"errors"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

const (
	Type         = "Fault"
	FieldMessage = "message"
)

// Fault raises an activity fault carrying its message field.
type Fault struct {
	message expression.Typed[string]
}

func NewFault(activity *models.Activity) *Fault {
	return &Fault{message: expression.Field[string](activity, FieldMessage, models.PlainText("fault"))}
}

func (a *Fault) Execute(ctx context.Context, scope protocol.Scope) (protocol.Result, error) {
	message, err := a.message.Resolve(ctx, scope)
	if err != nil {
		return protocol.Result{}, err
	}

	return protocol.Result{}, errors.New(message)
}
