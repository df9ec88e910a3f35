package host

import (
	"log/slog"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// MismatchHandler is invoked when a change names a tag this build does not
// know. It is called once per occurrence; implementations wanting
// deduplication key on the tags themselves.
//
// Returning nil skips the offending change and continues the batch.
// Returning an error stops the batch with that error.
type MismatchHandler interface {
	OnUnknownWidget(tag protocol.WidgetTag) error
	OnUnknownModifier(tag protocol.ModifierTag) error
	OnUnknownChildren(widgetTag protocol.WidgetTag, tag protocol.ChildrenTag) error
	OnUnknownProperty(widgetTag protocol.WidgetTag, tag protocol.PropertyTag) error
}

// ThrowingMismatchHandler fails on every mismatch.
type ThrowingMismatchHandler struct{}

func (ThrowingMismatchHandler) OnUnknownWidget(tag protocol.WidgetTag) error {
	return protocol.NewUnknownTagError(int32(tag), "Unknown widget tag %d", tag)
}

func (ThrowingMismatchHandler) OnUnknownModifier(tag protocol.ModifierTag) error {
	return protocol.NewUnknownTagError(int32(tag), "Unknown layout modifier tag %d", tag)
}

func (ThrowingMismatchHandler) OnUnknownChildren(widgetTag protocol.WidgetTag, tag protocol.ChildrenTag) error {
	return protocol.NewUnknownTagError(int32(tag), "Unknown children tag %d for widget tag %d", tag, widgetTag)
}

func (ThrowingMismatchHandler) OnUnknownProperty(widgetTag protocol.WidgetTag, tag protocol.PropertyTag) error {
	return protocol.NewUnknownTagError(int32(tag), "Unknown property tag %d for widget tag %d", tag, widgetTag)
}

// LoggingMismatchHandler logs each mismatch at warn level and lets the
// batch continue.
type LoggingMismatchHandler struct {
	Logger *slog.Logger
}

func (h LoggingMismatchHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h LoggingMismatchHandler) OnUnknownWidget(tag protocol.WidgetTag) error {
	h.logger().Warn("unknown widget tag", "widget_tag", int32(tag))
	return nil
}

func (h LoggingMismatchHandler) OnUnknownModifier(tag protocol.ModifierTag) error {
	h.logger().Warn("unknown modifier tag", "modifier_tag", int32(tag))
	return nil
}

func (h LoggingMismatchHandler) OnUnknownChildren(widgetTag protocol.WidgetTag, tag protocol.ChildrenTag) error {
	h.logger().Warn("unknown children tag",
		"widget_tag", int32(widgetTag),
		"children_tag", int32(tag))
	return nil
}

func (h LoggingMismatchHandler) OnUnknownProperty(widgetTag protocol.WidgetTag, tag protocol.PropertyTag) error {
	h.logger().Warn("unknown property tag",
		"widget_tag", int32(widgetTag),
		"property_tag", int32(tag))
	return nil
}
