package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	kinds      []string
	durable    bool
	declareErr error
	publishErr error
	published  []published
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name)
	f.kinds = append(f.kinds, kind)
	f.durable = durable
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestNewPublisher_DeclaresDurableTopicExchange(t *testing.T) {
	ch := &fakeChannel{}

	_, err := newPublisher(ch, "wallet_events", zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, []string{"wallet_events"}, ch.declared)
	assert.Equal(t, []string{amqp.ExchangeTopic}, ch.kinds)
	assert.True(t, ch.durable)
}

func TestNewPublisher_DeclareError(t *testing.T) {
	ch := &fakeChannel{declareErr: errors.New("access refused")}

	_, err := newPublisher(ch, "wallet_events", zerolog.Nop())

	assert.ErrorContains(t, err, "access refused")
}

func TestPublish_PersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "wallet_events", zerolog.Nop())
	require.NoError(t, err)

	err = p.Publish(context.Background(), "wallet.topup.settled", map[string]int64{"amount": 500000})

	require.NoError(t, err)
	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "wallet_events", got.exchange)
	assert.Equal(t, "wallet.topup.settled", got.key)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "application/json", got.msg.ContentType)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(got.msg.Body, &body))
	assert.Equal(t, int64(500000), body["amount"])
}

func TestPublish_Errors(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "wallet_events", zerolog.Nop())
	require.NoError(t, err)

	err = p.Publish(context.Background(), "k", make(chan int))
	assert.ErrorContains(t, err, "marshal event")

	ch.publishErr = amqp.ErrClosed
	err = p.Publish(context.Background(), "k", "x")
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestClose_WithoutConnection(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "wallet_events", zerolog.Nop())
	require.NoError(t, err)

	assert.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
