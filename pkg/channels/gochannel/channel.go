// Package gochannel provides the in-process transport for the event bus.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	outputBuffer     = 1000
	testOutputBuffer = 10
)

// CreateChannel returns one GoChannel acting as both publisher and subscriber.
// Triggers published on it only reach subscribers in the same process.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	return newPubSub(logger, gochannel.Config{OutputChannelBuffer: outputBuffer})
}

// CreateTestChannel keeps published messages, so a subscriber that arrives
// after Publish still receives them.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	return newPubSub(logger, gochannel.Config{OutputChannelBuffer: testOutputBuffer, Persistent: true})
}

func newPubSub(logger watermill.LoggerAdapter, config gochannel.Config) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(config, logger)

	return pubSub, pubSub, nil
}
