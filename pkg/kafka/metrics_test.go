package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getCounterValue retrieves the current value of a producer counter for topic.
func getCounterValue(t *testing.T, metricName, topic string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != metricName {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "topic" && lp.GetValue() == topic && m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestProducerMetrics_Registered(t *testing.T) {
	ProducerMessagesPublished.WithLabelValues("test-topic")
	ProducerPublishErrors.WithLabelValues("test-topic")
	ProducerPublishDuration.WithLabelValues("test-topic")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	help := make(map[string]string, len(families))
	for _, fam := range families {
		help[fam.GetName()] = fam.GetHelp()
	}

	for _, name := range []string{
		"kafka_producer_messages_published_total",
		"kafka_producer_publish_errors_total",
		"kafka_producer_publish_duration_seconds",
	} {
		assert.Contains(t, help, name)
		assert.Contains(t, help[name], "Kafka")
	}
}

func TestPublish_MarshalErrorCounted(t *testing.T) {
	topic := "metrics-test-marshal-topic"
	before := getCounterValue(t, "kafka_producer_publish_errors_total", topic)

	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	defer p.Close()

	err := p.Publish(context.Background(), topic, &Event{Data: json.RawMessage(`not json`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal event")

	assert.InDelta(t, before+1, getCounterValue(t, "kafka_producer_publish_errors_total", topic), 0.001)
}

func TestCompletion_CountsPerMessage(t *testing.T) {
	okTopic := "metrics-test-completion-ok"
	badTopic := "metrics-test-completion-bad"
	okBefore := getCounterValue(t, "kafka_producer_messages_published_total", okTopic)
	badBefore := getCounterValue(t, "kafka_producer_publish_errors_total", badTopic)

	p := NewProducer(ProducerConfig{Brokers: []string{"localhost:19092"}, Async: true}, nil)
	defer p.Close()

	p.completion([]kafka.Message{{Topic: okTopic}, {Topic: okTopic}}, nil)
	p.completion([]kafka.Message{{Topic: badTopic}}, errors.New("leader not available"))

	assert.InDelta(t, okBefore+2, getCounterValue(t, "kafka_producer_messages_published_total", okTopic), 0.001)
	assert.InDelta(t, badBefore+1, getCounterValue(t, "kafka_producer_publish_errors_total", badTopic), 0.001)
}
