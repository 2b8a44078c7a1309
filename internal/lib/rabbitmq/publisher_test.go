package rabbitmq

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakePublisher) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange = exchange
	f.key = key
	f.msg = msg
	return f.err
}

func TestPublishMessage(t *testing.T) {
	type testMsg struct {
		Kind string `json:"kind"`
		Body string `json:"body"`
	}

	t.Run("success", func(t *testing.T) {
		pub := &fakePublisher{}
		err := PublishMessage(pub, "whatsapp", "outbound", testMsg{Kind: "message", Body: "halo"})
		require.NoError(t, err)

		assert.Equal(t, "whatsapp", pub.exchange)
		assert.Equal(t, "outbound", pub.key)
		assert.Equal(t, "application/json", pub.msg.ContentType)
		assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)

		var got testMsg
		require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
		assert.Equal(t, "halo", got.Body)
	})

	t.Run("publish error", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("channel closed")}
		err := PublishMessage(pub, "whatsapp", "outbound", testMsg{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "channel closed")
	})

	t.Run("marshal error", func(t *testing.T) {
		pub := &fakePublisher{}
		err := PublishMessage(pub, "whatsapp", "outbound", make(chan int))
		require.Error(t, err)
	})
}

func TestIsDrop(t *testing.T) {
	assert.True(t, IsDrop(ErrDrop))
	assert.True(t, IsDrop(errors.Join(errors.New("bad json"), ErrDrop)))
	assert.False(t, IsDrop(errors.New("other")))
}
