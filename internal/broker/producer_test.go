package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriterPerTopicIsReused(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"})

	a := p.writerForTopic("motion.control")
	b := p.writerForTopic("motion.control")
	c := p.writerForTopic("motion.events")

	require.Same(t, a, b)
	require.NotSame(t, a, c)
	require.Equal(t, "motion.events", c.Topic)
	require.NoError(t, p.Close())
	require.Empty(t, p.writers)
}

func TestPingWithoutBrokers(t *testing.T) {
	require.Error(t, Ping(context.Background(), nil))
}

func TestPingUnreachableBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.Error(t, Ping(ctx, []string{"127.0.0.1:1"}))
}
