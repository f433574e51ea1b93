// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// TriggerRequest is the body of POST /triggers/:activity. It may be empty.
type TriggerRequest struct {
	Arguments *models.Variables `json:"arguments"`
}

// TriggerResponse lists the passes a trigger produced. Errors is set when
// some workflows failed while others still ran.
type TriggerResponse struct {
	ActivityName string                     `json:"activity_name"`
	Started      []*models.ExecutionContext `json:"started"`
	Resumed      []*models.ExecutionContext `json:"resumed"`
	Errors       []string                   `json:"errors,omitempty"`
}

// ActivityResponse describes a registered activity type.
type ActivityResponse struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

func TransformActivityResponse(factory protocol.ActivityFactory) ActivityResponse {
	return ActivityResponse{
		Type:        factory.ID(),
		Name:        factory.Name(),
		Description: factory.Description(),
		Schema:      factory.Schema(),
	}
}
