// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowhost/pkg/models"
)

type EventType string

// Topics.
const Topic = "flowhost.events"          // Lifecycle events published by the host
const TriggerTopic = "flowhost.triggers" // Trigger requests consumed by the host

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Instance lifecycle events.
	InstanceStartedEvent EventType = "instance.started"
	InstanceResumedEvent EventType = "instance.resumed"

	// TriggerReceivedEvent asks the host to run Trigger for an activity name.
	TriggerReceivedEvent EventType = "trigger.received"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// Pass summarizes one invoker pass over an instance.
type Pass struct {
	ExecutionID  string                 `json:"execution_id"`
	DefinitionID string                 `json:"definition_id"`
	ActivityID   string                 `json:"activity_id"`
	Status       models.ExecutionStatus `json:"status"`
	Blocked      []string               `json:"blocked,omitempty"`
	Fault        string                 `json:"fault,omitempty"`
	Version      int64                  `json:"version"`
}

// NewPass builds a pass summary from an execution context and the instance version it produced.
func NewPass(ec *models.ExecutionContext, version int64) Pass {
	pass := Pass{
		ExecutionID:  ec.ID,
		DefinitionID: ec.DefinitionID,
		ActivityID:   ec.ActivityID,
		Status:       ec.Status,
		Blocked:      ec.Blocked,
		Version:      version,
	}

	if ec.Fault != nil {
		pass.Fault = ec.Fault.Error()
	}

	return pass
}

type InstanceStarted struct {
	BaseEvent
	Pass
}

func (InstanceStarted) GetType() EventType {
	return InstanceStartedEvent
}

func NewInstanceStarted(ec *models.ExecutionContext, version int64) InstanceStarted {
	return InstanceStarted{
		BaseEvent: NewBaseEvent(InstanceStartedEvent, ec.WorkflowID),
		Pass:      NewPass(ec, version),
	}
}

type InstanceResumed struct {
	BaseEvent
	Pass
}

func (InstanceResumed) GetType() EventType {
	return InstanceResumedEvent
}

func NewInstanceResumed(ec *models.ExecutionContext, version int64) InstanceResumed {
	return InstanceResumed{
		BaseEvent: NewBaseEvent(InstanceResumedEvent, ec.WorkflowID),
		Pass:      NewPass(ec, version),
	}
}

// TriggerReceived carries an activity name and its arguments over the bus.
type TriggerReceived struct {
	BaseEvent

	ActivityName string            `json:"activity_name"`
	Arguments    *models.Variables `json:"arguments"`
}

func (TriggerReceived) GetType() EventType {
	return TriggerReceivedEvent
}

func NewTriggerReceived(activityName string, arguments *models.Variables) TriggerReceived {
	return TriggerReceived{
		BaseEvent:    NewBaseEvent(TriggerReceivedEvent, ""),
		ActivityName: activityName,
		Arguments:    arguments,
	}
}

// TopicFor returns the topic an event type is published on.
func TopicFor(eventType EventType) string {
	if eventType == TriggerReceivedEvent {
		return TriggerTopic
	}

	return Topic
}

// New returns an empty event of the given type for decoding, or nil for unknown types.
func New(eventType EventType) any {
	switch eventType {
	case InstanceStartedEvent:
		return &InstanceStarted{}
	case InstanceResumedEvent:
		return &InstanceResumed{}
	case TriggerReceivedEvent:
		return &TriggerReceived{}
	default:
		return nil
	}
}
