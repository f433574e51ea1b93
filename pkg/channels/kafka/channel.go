// Package kafka provides the Kafka transport for the event bus.
package kafka

import (
	"errors"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"

	"github.com/dukex/flowhost/pkg/events"
)

var ErrNoBrokers = errors.New("no Kafka brokers configured")

// CreateChannel connects to brokers with a publisher and a subscriber in the
// consumer group "cg-<serviceName>". Messages are partitioned by their event
// key, so the events of one workflow keep their order.
func CreateChannel(logger watermill.LoggerAdapter, brokers []string, serviceName string) (message.Publisher, message.Subscriber, error) {
	brokers = cleanBrokers(brokers)
	if len(brokers) == 0 {
		return nil, nil, ErrNoBrokers
	}

	marshaler := kafka.NewWithPartitioningMarshaler(partitionKey)

	subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               brokers,
		Unmarshaler:           marshaler,
		OverwriteSaramaConfig: subscriberConfig,
		ConsumerGroup:         "cg-" + serviceName,
		OTELEnabled:           true,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	publisherConfig := kafka.DefaultSaramaSyncPublisherConfig()
	publisherConfig.ClientID = serviceName

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             marshaler,
		OverwriteSaramaConfig: publisherConfig,
		OTELEnabled:           true,
	}, logger)
	if err != nil {
		return nil, nil, errors.Join(err, subscriber.Close())
	}

	return publisher, subscriber, nil
}

func partitionKey(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(events.EventMetadataKey), nil
}

// cleanBrokers trims the addresses and drops empty ones.
func cleanBrokers(brokers []string) []string {
	cleaned := make([]string, 0, len(brokers))

	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			cleaned = append(cleaned, broker)
		}
	}

	return cleaned
}
