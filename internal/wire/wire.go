// Package wire frames JSON payloads for Kafka records: a zero magic byte, a big-endian
// schema id, then the payload.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Header keys carried on every record.
const (
	HeaderEventType     = "event_type"
	HeaderDeviceID      = "device_id"
	HeaderSchemaSubject = "schema_subject"
	HeaderCorrelationID = "correlation_id"
)

// Schema ids of the payloads the bridge exchanges.
const (
	SchemaTransitionBatch = 1
	SchemaActivityEvent   = 2
	SchemaControlCommand  = 3
)

const prefixLen = 5

// ErrMalformed is returned for frames without a valid prefix.
var ErrMalformed = errors.New("malformed wire frame")

// Encode frames payload with schemaID.
func Encode(schemaID int, payload []byte) []byte {
	frame := make([]byte, prefixLen+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:prefixLen], uint32(schemaID))
	copy(frame[prefixLen:], payload)
	return frame
}

// Decode splits a frame into its schema id and a copy of the payload.
func Decode(frame []byte) (int, []byte, error) {
	if len(frame) < prefixLen {
		return 0, nil, fmt.Errorf("%w: length %d", ErrMalformed, len(frame))
	}
	if frame[0] != 0 {
		return 0, nil, fmt.Errorf("%w: magic byte %d", ErrMalformed, frame[0])
	}
	schemaID := int(binary.BigEndian.Uint32(frame[1:prefixLen]))
	return schemaID, append([]byte(nil), frame[prefixLen:]...), nil
}

// HeaderValue returns the first header named key.
func HeaderValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
