package guest

import (
	"log/slog"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// MismatchHandler is invoked when an event from the host names something
// this guest does not know. It is called once per occurrence; implementations
// wanting deduplication key on the arguments themselves.
//
// Returning nil drops the event. Returning an error fails SendEvent.
type MismatchHandler interface {
	OnUnknownEvent(widgetTag protocol.WidgetTag, tag protocol.EventTag) error
	OnUnknownEventNode(id protocol.Id, tag protocol.EventTag) error
}

// ThrowingMismatchHandler fails on every mismatch.
type ThrowingMismatchHandler struct{}

func (ThrowingMismatchHandler) OnUnknownEvent(widgetTag protocol.WidgetTag, tag protocol.EventTag) error {
	return protocol.NewUnknownTagError(int32(tag), "Unknown event tag %d for widget tag %d", tag, widgetTag)
}

func (ThrowingMismatchHandler) OnUnknownEventNode(id protocol.Id, tag protocol.EventTag) error {
	err := protocol.NewUnknownTagError(int32(tag), "Unknown node ID %d for event with tag %d", id, tag)
	err.Id = id
	return err
}

// LoggingMismatchHandler logs each mismatch at warn level and drops it.
type LoggingMismatchHandler struct {
	Logger *slog.Logger
}

func (h LoggingMismatchHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h LoggingMismatchHandler) OnUnknownEvent(widgetTag protocol.WidgetTag, tag protocol.EventTag) error {
	h.logger().Warn("unknown event tag",
		"widget_tag", int32(widgetTag),
		"event_tag", int32(tag))
	return nil
}

func (h LoggingMismatchHandler) OnUnknownEventNode(id protocol.Id, tag protocol.EventTag) error {
	h.logger().Warn("event for unknown node",
		"id", uint32(id),
		"event_tag", int32(tag))
	return nil
}
