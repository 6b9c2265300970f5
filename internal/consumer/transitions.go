package consumer

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"example.com/motion/internal/domain"
	"example.com/motion/internal/platform"
	"example.com/motion/internal/wire"
)

// EventTypeTransitions marks records carrying a transition batch.
const EventTypeTransitions = "activity.transitions"

// TransitionBatch is the payload of a transitions record.
type TransitionBatch struct {
	Transitions []domain.TransitionRecord `json:"transitions"`
}

// TransitionHandler decodes transition batches and hands them to a platform.TransitionHandler.
// Records of other event types are skipped.
type TransitionHandler struct {
	target platform.TransitionHandler
}

// NewTransitionHandler returns a Handler feeding target.
func NewTransitionHandler(target platform.TransitionHandler) *TransitionHandler {
	return &TransitionHandler{target: target}
}

// Handle implements Handler.
func (h *TransitionHandler) Handle(_ context.Context, msg Message) error {
	if msg.EventType != EventTypeTransitions {
		return nil
	}
	if msg.SchemaID != wire.SchemaTransitionBatch {
		return fmt.Errorf("unexpected schema id %d for %s", msg.SchemaID, msg.EventType)
	}

	var batch TransitionBatch
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		return fmt.Errorf("decode transition batch: %w", err)
	}
	h.target.HandleTransitions(batch.Transitions)
	return nil
}
