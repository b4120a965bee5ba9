package events

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRabbitPublisher_RoutesByType(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitPublisher{channel: ch, exchange: "fixer.lifecycle"}

	ev := New(JobStarted, 5, 9, map[string]interface{}{"distance_feet": 120.5})
	require.NoError(t, p.Publish(context.Background(), ev))

	assert.Equal(t, "fixer.lifecycle", ch.exchange)
	assert.Equal(t, "job.started", ch.key)
	assert.Equal(t, ev.ID, ch.msg.MessageId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var decoded Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, uint(5), decoded.JobID)
	assert.Equal(t, uint(9), decoded.ActorID)
	assert.Equal(t, 120.5, decoded.Data["distance_feet"])

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), New(JobCreated, 1, 1, nil)))
	assert.NoError(t, p.Close())
}
