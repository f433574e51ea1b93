// Package models defines the workflow graph, its variable scope and the result of executing it.
package models

import (
	"slices"
	"time"
)

// WorkflowKind discriminates reusable definitions from running instances.
type WorkflowKind string

const (
	WorkflowKindDefinition WorkflowKind = "definition"
	WorkflowKindInstance   WorkflowKind = "instance"
)

// WorkflowStatus is the state an instance was left in by its last pass.
type WorkflowStatus string

const (
	WorkflowStatusIdle      WorkflowStatus = "idle"      // Derived, never executed
	WorkflowStatusCompleted WorkflowStatus = "completed" // Nothing left to resume
	WorkflowStatusBlocked   WorkflowStatus = "blocked"   // Waiting on at least one trigger
	WorkflowStatusFaulted   WorkflowStatus = "faulted"   // Last pass faulted, see Fault
)

// Workflow is a directed graph of activities joined by outcome connections.
// Definitions are templates; instances are derived from a definition and
// carry the execution state between triggers.
type Workflow struct {
	ID                 string              `json:"id"                      validate:"required"`
	Name               string              `json:"name"`
	Kind               WorkflowKind        `json:"kind"                    validate:"required,oneof=definition instance"`
	DefinitionID       string              `json:"definition_id,omitempty" validate:"required_if=Kind instance"`
	Version            int64               `json:"version"`
	Activities         []*Activity         `json:"activities"              validate:"dive"`
	Connections        []*Connection       `json:"connections"             validate:"dive"`
	Variables          *Variables          `json:"variables"`
	BlockingActivities []string            `json:"blocking_activities,omitempty"` // Activity IDs
	Arrivals           map[string][]string `json:"arrivals,omitempty"`            // Join activity ID -> arrived connection IDs
	Status             WorkflowStatus      `json:"status,omitempty"`
	Fault              string              `json:"fault,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func (w *Workflow) IsDefinition() bool {
	return w.Kind == WorkflowKindDefinition
}

func (w *Workflow) IsInstance() bool {
	return w.Kind == WorkflowKindInstance
}

// Activity returns the member activity with the given ID, or nil.
func (w *Workflow) Activity(id string) *Activity {
	for _, activity := range w.Activities {
		if activity.ID == id {
			return activity
		}
	}

	return nil
}

// Incoming returns the connections that target the given activity.
func (w *Workflow) Incoming(activityID string) []*Connection {
	var connections []*Connection

	for _, conn := range w.Connections {
		if conn.Target == activityID {
			connections = append(connections, conn)
		}
	}

	return connections
}

// Outgoing returns the connections leaving the given activity on the given outcome.
func (w *Workflow) Outgoing(activityID, outcome string) []*Connection {
	var connections []*Connection

	for _, conn := range w.Connections {
		if conn.Source == activityID && conn.Outcome == outcome {
			connections = append(connections, conn)
		}
	}

	return connections
}

func (w *Workflow) HasIncoming(activityID string) bool {
	for _, conn := range w.Connections {
		if conn.Target == activityID {
			return true
		}
	}

	return false
}

// StartActivities returns the entry points of the graph: activities no connection targets.
func (w *Workflow) StartActivities() []*Activity {
	var starts []*Activity

	for _, activity := range w.Activities {
		if !w.HasIncoming(activity.ID) {
			starts = append(starts, activity)
		}
	}

	return starts
}

// StartActivitiesNamed returns the entry points whose name matches.
func (w *Workflow) StartActivitiesNamed(name string) []*Activity {
	var starts []*Activity

	for _, activity := range w.StartActivities() {
		if activity.Name == name {
			starts = append(starts, activity)
		}
	}

	return starts
}

func (w *Workflow) IsBlockedOn(activityID string) bool {
	return slices.Contains(w.BlockingActivities, activityID)
}

// BlockingActivitiesNamed returns the blocking activities whose name matches, in blocking order.
func (w *Workflow) BlockingActivitiesNamed(name string) []*Activity {
	var blocking []*Activity

	for _, id := range w.BlockingActivities {
		if activity := w.Activity(id); activity != nil && activity.Name == name {
			blocking = append(blocking, activity)
		}
	}

	return blocking
}

// Block adds the activity to the blocking set. It reports false when it was already there.
func (w *Workflow) Block(activityID string) bool {
	if w.IsBlockedOn(activityID) {
		return false
	}

	w.BlockingActivities = append(w.BlockingActivities, activityID)

	return true
}

// Unblock removes the activity from the blocking set. It reports false when it was not there.
func (w *Workflow) Unblock(activityID string) bool {
	idx := slices.Index(w.BlockingActivities, activityID)
	if idx < 0 {
		return false
	}

	w.BlockingActivities = slices.Delete(w.BlockingActivities, idx, idx+1)

	return true
}

// Clone returns a deep copy. Nothing owned by the copy is shared with w.
func (w *Workflow) Clone() *Workflow {
	clone := *w

	clone.Activities = make([]*Activity, len(w.Activities))
	for i, activity := range w.Activities {
		clone.Activities[i] = activity.Clone()
	}

	clone.Connections = make([]*Connection, len(w.Connections))
	for i, conn := range w.Connections {
		c := *conn
		clone.Connections[i] = &c
	}

	clone.Variables = w.Variables.Clone()
	clone.BlockingActivities = slices.Clone(w.BlockingActivities)

	if w.Arrivals != nil {
		clone.Arrivals = make(map[string][]string, len(w.Arrivals))
		for id, arrived := range w.Arrivals {
			clone.Arrivals[id] = slices.Clone(arrived)
		}
	}

	return &clone
}

// Derive creates a fresh instance of a definition: same graph, the definition's
// default variables, nothing blocking and no persisted version yet.
func (w *Workflow) Derive(id string, now time.Time) *Workflow {
	instance := w.Clone()
	instance.ID = id
	instance.Kind = WorkflowKindInstance
	instance.DefinitionID = w.ID
	instance.Version = 0
	instance.BlockingActivities = nil
	instance.Arrivals = nil
	instance.Status = WorkflowStatusIdle
	instance.Fault = ""
	instance.CreatedAt = now
	instance.UpdatedAt = now

	return instance
}
