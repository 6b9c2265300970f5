package wire

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	frame := Encode(SchemaTransitionBatch, []byte(`[{"activity_type":7}]`))
	require.Equal(t, byte(0), frame[0])

	id, payload, err := Decode(frame)
	require.NoError(t, err)
	require.Equal(t, SchemaTransitionBatch, id)
	require.JSONEq(t, `[{"activity_type":7}]`, string(payload))
}

func TestDecodeRejectsShortAndBadMagic(t *testing.T) {
	_, _, err := Decode([]byte{0, 1})
	require.ErrorIs(t, err, ErrMalformed)

	frame := Encode(1, nil)
	frame[0] = 9
	_, _, err = Decode(frame)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestHeaderValue(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte("activity.transitions")}}}

	v, ok := HeaderValue(msg, HeaderEventType)
	require.True(t, ok)
	require.Equal(t, "activity.transitions", string(v))

	_, ok = HeaderValue(msg, HeaderDeviceID)
	require.False(t, ok)
}
