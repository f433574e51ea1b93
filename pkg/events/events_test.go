package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowhost/pkg/models"
)

func TestTriggerReceived_JSONSerialization(t *testing.T) {
	arguments := models.NewVariables()
	arguments.Set("order_id", "A-1")
	arguments.Set("amount", float64(12))

	original := NewTriggerReceived("order-received", arguments)

	jsonData, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"activity_name":"order-received"`)
	assert.Contains(t, string(jsonData), `"arguments":{"order_id":"A-1","amount":12}`)

	var deserialized TriggerReceived

	err = json.Unmarshal(jsonData, &deserialized)
	require.NoError(t, err)

	assert.Equal(t, original.ID, deserialized.ID)
	assert.Equal(t, "order-received", deserialized.ActivityName)
	assert.Equal(t, []string{"order_id", "amount"}, deserialized.Arguments.Keys())
	assert.Equal(t, TriggerReceivedEvent, deserialized.GetType())
}

func TestNewInstanceResumed_CarriesFault(t *testing.T) {
	ec := &models.ExecutionContext{
		ID:           "ec-1",
		WorkflowID:   "instance-1",
		DefinitionID: "def-1",
		ActivityID:   "approve",
		Status:       models.ExecutionStatusFaulted,
		Fault:        models.NewActivityFault(&models.Activity{ID: "approve", Name: "Approve"}, errors.New("boom")),
	}

	event := NewInstanceResumed(ec, 3)

	assert.Equal(t, InstanceResumedEvent, event.GetType())
	assert.Equal(t, "instance-1", event.WorkflowID)
	assert.Equal(t, int64(3), event.Version)
	assert.Contains(t, event.Fault, "boom")
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, TriggerTopic, TopicFor(TriggerReceivedEvent))
	assert.Equal(t, Topic, TopicFor(InstanceStartedEvent))
}

func TestNew(t *testing.T) {
	assert.IsType(t, &InstanceStarted{}, New(InstanceStartedEvent))
	assert.IsType(t, &InstanceResumed{}, New(InstanceResumedEvent))
	assert.IsType(t, &TriggerReceived{}, New(TriggerReceivedEvent))
	assert.Nil(t, New("unknown"))
}
