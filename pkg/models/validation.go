package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrDuplicateActivity       = errors.New("duplicate activity id")
	ErrDanglingConnection      = errors.New("connection endpoint is not a member activity")
	ErrDuplicateConnection     = errors.New("duplicate connection id")
	ErrDefinitionBlocked       = errors.New("definition cannot have blocking activities")
	ErrUnknownBlockingActivity = errors.New("blocking activity is not a member activity")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field rules and the graph invariants: unique activity IDs,
// unique connection IDs, connections between members only, and no blocking
// state on definitions. A connection without an ID is checked under the ID
// Normalize would give it.
func (w *Workflow) Validate() error {
	if err := validate.Struct(w); err != nil {
		return err
	}

	seen := make(map[string]bool, len(w.Activities))
	for _, activity := range w.Activities {
		if seen[activity.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateActivity, activity.ID)
		}

		seen[activity.ID] = true
	}

	connections := make(map[string]bool, len(w.Connections))
	for _, conn := range w.Connections {
		id := conn.ID
		if id == "" {
			id = MakeConnectionID(conn.Source, conn.Outcome, conn.Target)
		}

		if connections[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateConnection, id)
		}

		connections[id] = true

		if !seen[conn.Source] {
			return fmt.Errorf("%w: %s (source %s)", ErrDanglingConnection, conn.ID, conn.Source)
		}

		if !seen[conn.Target] {
			return fmt.Errorf("%w: %s (target %s)", ErrDanglingConnection, conn.ID, conn.Target)
		}
	}

	if w.IsDefinition() && len(w.BlockingActivities) > 0 {
		return ErrDefinitionBlocked
	}

	for _, id := range w.BlockingActivities {
		if !seen[id] {
			return fmt.Errorf("%w: %s", ErrUnknownBlockingActivity, id)
		}
	}

	return nil
}

// Normalize fills in derived connection IDs and an empty variable scope.
func (w *Workflow) Normalize() {
	for _, conn := range w.Connections {
		if conn.ID == "" {
			conn.ID = MakeConnectionID(conn.Source, conn.Outcome, conn.Target)
		}
	}

	if w.Variables == nil {
		w.Variables = NewVariables()
	}
}
