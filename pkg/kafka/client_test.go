package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naijamart/storefront-backend/pkg/config"
)

func TestBaseOptsValidatesConfig(t *testing.T) {
	_, err := baseOpts(config.KafkaConfig{Brokers: []string{" "}, Topic: "t"})
	require.ErrorIs(t, err, errBrokersRequired)

	_, err = baseOpts(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.Error(t, err)

	opts, err := baseOpts(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	opts, err = baseOpts(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestRecordRoundTrip(t *testing.T) {
	msg := Message{
		Key:     "order-1",
		Value:   []byte(`{"ok":true}`),
		Headers: map[string]string{"event_type": "order_paid", "event_id": "01J"},
	}
	record := toRecord("storefront.order-events", msg)
	assert.Equal(t, "storefront.order-events", record.Topic)
	assert.Equal(t, "order_paid", header(record, "event_type"))
	assert.Equal(t, "", header(record, "missing"))

	back := fromRecord(record)
	assert.Equal(t, msg, back)
}

func TestConsumerRequiresGroup(t *testing.T) {
	_, err := NewConsumer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, nil)
	require.Error(t, err)
}
