package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowhost/pkg/events"
)

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {""}, {" ", ""}} {
		_, _, err := CreateChannel(watermill.NopLogger{}, brokers, "flowhost")
		assert.ErrorIs(t, err, ErrNoBrokers)
	}
}

func TestCleanBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, cleanBrokers([]string{" a:9092", "", "b:9092 "}))
}

func TestPartitionKey(t *testing.T) {
	msg := message.NewMessage("1", nil)
	msg.Metadata.Set(events.EventMetadataKey, "i-1")

	key, err := partitionKey("flowhost.instance", msg)
	require.NoError(t, err)
	assert.Equal(t, "i-1", key)
}
