package host

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

const (
	rowTag    protocol.WidgetTag   = 1
	textTag   protocol.WidgetTag   = 3
	buttonTag protocol.WidgetTag   = 4
	rowSlot   protocol.ChildrenTag = 1
	textProp  protocol.PropertyTag = 1
	clickTag  protocol.EventTag    = 2
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWidget struct {
	id        protocol.Id
	tag       protocol.WidgetTag
	props     map[protocol.PropertyTag]protocol.Value
	modifiers []protocol.ModifierElement
	slots     map[protocol.ChildrenTag]*fakeContainer
	sink      EventSink
}

func (w *fakeWidget) SetProperty(tag protocol.PropertyTag, value protocol.Value) bool {
	if tag != textProp || w.tag == rowTag {
		return false
	}
	w.props[tag] = value
	return true
}

func (w *fakeWidget) SetModifiers(elements []protocol.ModifierElement) {
	w.modifiers = elements
}

func (w *fakeWidget) Children(tag protocol.ChildrenTag) (Container, bool) {
	c, ok := w.slots[tag]
	if !ok {
		return nil, false
	}
	return c, true
}

func (w *fakeWidget) BindEvents(id protocol.Id, sink EventSink) {
	w.id = id
	w.sink = sink
}

func (w *fakeWidget) click() error {
	return w.sink.SendEvent(protocol.Event{Id: w.id, Tag: clickTag})
}

type fakeContainer struct {
	widgets  []Widget
	log      []string
	detached bool
}

func (c *fakeContainer) Insert(index int, w Widget) {
	c.log = append(c.log, fmt.Sprintf("insert %d", index))
	c.widgets = append(c.widgets, nil)
	copy(c.widgets[index+1:], c.widgets[index:])
	c.widgets[index] = w
}

func (c *fakeContainer) Move(fromIndex, toIndex, count int) {
	c.log = append(c.log, fmt.Sprintf("move %d %d %d", fromIndex, toIndex, count))
	c.widgets = protocol.MoveRange(c.widgets, fromIndex, toIndex, count)
}

func (c *fakeContainer) Remove(index, count int) {
	c.log = append(c.log, fmt.Sprintf("remove %d %d", index, count))
	c.widgets = append(c.widgets[:index], c.widgets[index+count:]...)
}

func (c *fakeContainer) OnModifierUpdated(index int, w Widget) {
	c.log = append(c.log, fmt.Sprintf("modifier %d", index))
}

func (c *fakeContainer) Detach() {
	c.detached = true
	c.widgets = nil
}

func (c *fakeContainer) ids() []protocol.Id {
	out := make([]protocol.Id, len(c.widgets))
	for i, w := range c.widgets {
		out[i] = w.(*fakeWidget).id
	}
	return out
}

// fakeFactory knows rows, texts and buttons, and modifier tags 1 and 2.
type fakeFactory struct{}

func (f *fakeFactory) Create(tag protocol.WidgetTag) (Widget, bool) {
	w := &fakeWidget{tag: tag, props: map[protocol.PropertyTag]protocol.Value{}}
	switch tag {
	case rowTag:
		w.slots = map[protocol.ChildrenTag]*fakeContainer{rowSlot: {}}
	case textTag, buttonTag:
	default:
		return nil, false
	}
	return w, true
}

func (f *fakeFactory) KnownModifier(tag protocol.ModifierTag) bool {
	return tag == 1 || tag == 2
}

type recordingMismatch struct {
	events []string
}

func (r *recordingMismatch) OnUnknownWidget(tag protocol.WidgetTag) error {
	r.events = append(r.events, fmt.Sprintf("widget %d", tag))
	return nil
}

func (r *recordingMismatch) OnUnknownModifier(tag protocol.ModifierTag) error {
	r.events = append(r.events, fmt.Sprintf("modifier %d", tag))
	return nil
}

func (r *recordingMismatch) OnUnknownChildren(widgetTag protocol.WidgetTag, tag protocol.ChildrenTag) error {
	r.events = append(r.events, fmt.Sprintf("children %d of %d", tag, widgetTag))
	return nil
}

func (r *recordingMismatch) OnUnknownProperty(widgetTag protocol.WidgetTag, tag protocol.PropertyTag) error {
	r.events = append(r.events, fmt.Sprintf("property %d of %d", tag, widgetTag))
	return nil
}

type fixture struct {
	bridge  *Bridge
	root    *fakeContainer
	factory *fakeFactory
}

func newFixture(opts ...BridgeOption) *fixture {
	root := &fakeContainer{}
	factory := &fakeFactory{}
	opts = append([]BridgeOption{WithLogger(discardLogger())}, opts...)
	return &fixture{
		bridge:  NewBridge(root, factory, opts...),
		root:    root,
		factory: factory,
	}
}

func (f *fixture) widget(id protocol.Id) *fakeWidget {
	w, ok := f.bridge.Widget(id)
	if !ok {
		return nil
	}
	return w.(*fakeWidget)
}
