package models

import "maps"

// Activity is a node of the workflow graph. Name is what triggers match
// against and need not be unique; ID is the stable address within the graph.
type Activity struct {
	ID     string                `json:"id"               validate:"required"`
	Name   string                `json:"name,omitempty"`
	Type   string                `json:"type"             validate:"required"`
	Fields map[string]Expression `json:"fields,omitempty" validate:"dive"`
}

// Field returns the expression bound to a named field.
func (a *Activity) Field(name string) (Expression, bool) {
	expr, ok := a.Fields[name]

	return expr, ok
}

func (a *Activity) Clone() *Activity {
	clone := *a
	clone.Fields = maps.Clone(a.Fields)

	return &clone
}
