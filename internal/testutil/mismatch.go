package testutil

import (
	"fmt"
	"sync"

	"github.com/cashapp/redwood-sub006/internal/host"
	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// Mismatch kinds.
const (
	MismatchWidget   = "widget"
	MismatchModifier = "modifier"
	MismatchChildren = "children"
	MismatchProperty = "property"
)

// Mismatch is one recorded schema mismatch. WidgetTag is zero for widget
// and modifier mismatches.
type Mismatch struct {
	Kind      string
	WidgetTag protocol.WidgetTag
	Tag       int32
}

func (m Mismatch) String() string {
	switch m.Kind {
	case MismatchWidget, MismatchModifier:
		return fmt.Sprintf("%s %d", m.Kind, m.Tag)
	default:
		return fmt.Sprintf("%s %d on widget %d", m.Kind, m.Tag, m.WidgetTag)
	}
}

// RecordingMismatchHandler records every mismatch, then defers to Next.
// A nil Next lets every batch continue.
type RecordingMismatchHandler struct {
	Next host.MismatchHandler

	mu      sync.Mutex
	records []Mismatch
}

// NewRecordingMismatchHandler wraps next.
func NewRecordingMismatchHandler(next host.MismatchHandler) *RecordingMismatchHandler {
	return &RecordingMismatchHandler{Next: next}
}

func (h *RecordingMismatchHandler) record(m Mismatch) {
	h.mu.Lock()
	h.records = append(h.records, m)
	h.mu.Unlock()
}

func (h *RecordingMismatchHandler) OnUnknownWidget(tag protocol.WidgetTag) error {
	h.record(Mismatch{Kind: MismatchWidget, Tag: int32(tag)})
	if h.Next == nil {
		return nil
	}
	return h.Next.OnUnknownWidget(tag)
}

func (h *RecordingMismatchHandler) OnUnknownModifier(tag protocol.ModifierTag) error {
	h.record(Mismatch{Kind: MismatchModifier, Tag: int32(tag)})
	if h.Next == nil {
		return nil
	}
	return h.Next.OnUnknownModifier(tag)
}

func (h *RecordingMismatchHandler) OnUnknownChildren(widgetTag protocol.WidgetTag, tag protocol.ChildrenTag) error {
	h.record(Mismatch{Kind: MismatchChildren, WidgetTag: widgetTag, Tag: int32(tag)})
	if h.Next == nil {
		return nil
	}
	return h.Next.OnUnknownChildren(widgetTag, tag)
}

func (h *RecordingMismatchHandler) OnUnknownProperty(widgetTag protocol.WidgetTag, tag protocol.PropertyTag) error {
	h.record(Mismatch{Kind: MismatchProperty, WidgetTag: widgetTag, Tag: int32(tag)})
	if h.Next == nil {
		return nil
	}
	return h.Next.OnUnknownProperty(widgetTag, tag)
}

// Mismatches returns a copy of the recorded mismatches in order.
func (h *RecordingMismatchHandler) Mismatches() []Mismatch {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Mismatch(nil), h.records...)
}

// Count returns the number of recorded mismatches.
func (h *RecordingMismatchHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

var _ host.MismatchHandler = (*RecordingMismatchHandler)(nil)
