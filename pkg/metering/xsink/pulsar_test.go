package xsink

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePulsarProducer struct {
	sent   []*pulsar.ProducerMessage
	err    error
	closed bool
}

func (f *fakePulsarProducer) Send(_ context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	return nil, nil
}

func (f *fakePulsarProducer) Close() { f.closed = true }

func TestNewPulsar_Validation(t *testing.T) {
	_, err := NewPulsar(PulsarConfig{Topic: "t"})
	assert.ErrorIs(t, err, ErrMissingConfig)
	_, err = NewPulsar(PulsarConfig{URL: "pulsar://localhost:6650"})
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestPulsar_Send(t *testing.T) {
	fp := &fakePulsarProducer{}
	p := &Pulsar{producer: fp}

	require.NoError(t, p.Send(context.Background(), newBatch(t, "b7", 2)))
	require.Len(t, fp.sent, 2)
	assert.Equal(t, "C0", fp.sent[0].Key)
	assert.Equal(t, "b7", fp.sent[0].Properties[BatchIDHeader])
	assert.Equal(t, batchTime, fp.sent[0].EventTime)

	fp.err = errors.New("producer blocked")
	assert.ErrorContains(t, p.Send(context.Background(), newBatch(t, "b8", 1)), "producer blocked")

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, fp.closed)
	assert.ErrorIs(t, p.Send(context.Background(), newBatch(t, "b9", 1)), ErrClosed)
}
