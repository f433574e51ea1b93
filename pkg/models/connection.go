package models

import "strings"

// Connection is a directed edge fired when Source produces Outcome.
type Connection struct {
	ID      string `json:"id"`
	Source  string `json:"source"  validate:"required"` // Activity ID
	Outcome string `json:"outcome" validate:"required"`
	Target  string `json:"target"  validate:"required"` // Activity ID
}

// MakeConnectionID creates a connection ID in format "{source}:{outcome}->{target}".
func MakeConnectionID(source, outcome, target string) string {
	return source + ":" + outcome + "->" + target
}

// ParseConnectionID parses a connection ID created by MakeConnectionID.
func ParseConnectionID(id string) (string, string, string, bool) {
	head, target, ok := strings.Cut(id, "->")
	if !ok {
		return "", "", "", false
	}

	source, outcome, ok := strings.Cut(head, ":")
	if !ok {
		return "", "", "", false
	}

	return source, outcome, target, true
}
