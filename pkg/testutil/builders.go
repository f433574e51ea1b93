// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/dukex/flowhost/pkg/models"
)

// CreateTestActivity creates a test Activity with default values that can be overridden.
func CreateTestActivity(overrides ...func(*models.Activity)) *models.Activity {
	activity := &models.Activity{
		ID:     uuid.New().String(),
		Type:   "WriteLine",
		Fields: map[string]models.Expression{"text": models.PlainText("test")},
	}

	for _, override := range overrides {
		override(activity)
	}

	return activity
}

// WithID sets the activity ID.
func WithID(id string) func(*models.Activity) {
	return func(a *models.Activity) {
		a.ID = id
	}
}

// WithName sets the activity name.
func WithName(name string) func(*models.Activity) {
	return func(a *models.Activity) {
		a.Name = name
	}
}

// WithType sets the activity type.
func WithType(activityType string) func(*models.Activity) {
	return func(a *models.Activity) {
		a.Type = activityType
	}
}

// WithField binds an expression to a field.
func WithField(name string, expr models.Expression) func(*models.Activity) {
	return func(a *models.Activity) {
		if a.Fields == nil {
			a.Fields = make(map[string]models.Expression)
		}

		a.Fields[name] = expr
	}
}

// CreateTestDefinition creates a definition holding the given activities.
func CreateTestDefinition(id string, activities ...*models.Activity) *models.Workflow {
	return &models.Workflow{
		ID:          id,
		Name:        "Test Workflow " + id,
		Kind:        models.WorkflowKindDefinition,
		Activities:  activities,
		Connections: []*models.Connection{},
		Variables:   models.NewVariables(),
	}
}

// CreateTestInstance derives an instance of def with a fixed ID.
func CreateTestInstance(def *models.Workflow, id string) *models.Workflow {
	instance := def.Clone()
	instance.ID = id
	instance.Kind = models.WorkflowKindInstance
	instance.DefinitionID = def.ID
	instance.Status = models.WorkflowStatusIdle

	return instance
}

// Connect adds a connection from source on outcome to target.
func Connect(wf *models.Workflow, source, outcome, target string) *models.Workflow {
	wf.Connections = append(wf.Connections, &models.Connection{
		ID:      models.MakeConnectionID(source, outcome, target),
		Source:  source,
		Outcome: outcome,
		Target:  target,
	})

	return wf
}

// Signal is a shortcut for a named Signal activity.
func Signal(id, name string) *models.Activity {
	return CreateTestActivity(WithID(id), WithName(name), WithType("Signal"), func(a *models.Activity) { a.Fields = nil })
}

// WriteLine is a shortcut for a WriteLine activity.
func WriteLine(id string, text models.Expression) *models.Activity {
	return CreateTestActivity(WithID(id), WithField("text", text))
}
