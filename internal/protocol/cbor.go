package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical options so equal batches encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

const (
	cborCreate uint8 = iota + 1
	cborProperty
	cborModifier
	cborAdd
	cborMove
	cborRemove
)

// changeCBOR is the compact binary form of a change. Integer keys keep
// batches small; absent keys decode as zero.
type changeCBOR struct {
	Type       uint8             `cbor:"1,keyasint"`
	Id         Id                `cbor:"2,keyasint"`
	Tag        int32             `cbor:"3,keyasint"`
	Widget     *WidgetTag        `cbor:"4,keyasint,omitempty"`
	Value      cbor.RawMessage   `cbor:"5,keyasint,omitempty"`
	Elements   []cbor.RawMessage `cbor:"6,keyasint,omitempty"`
	ChildId    Id                `cbor:"7,keyasint,omitempty"`
	Index      int               `cbor:"8,keyasint,omitempty"`
	FromIndex  int               `cbor:"9,keyasint,omitempty"`
	ToIndex    int               `cbor:"10,keyasint,omitempty"`
	Count      int               `cbor:"11,keyasint,omitempty"`
	RemovedIds []Id              `cbor:"12,keyasint,omitempty"`
}

type eventCBOR struct {
	Id   Id                `cbor:"1,keyasint"`
	Tag  EventTag          `cbor:"2,keyasint"`
	Args []cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

// MarshalChangesCBOR encodes a batch as a CBOR array.
func MarshalChangesCBOR(changes []Change) ([]byte, error) {
	out := make([]changeCBOR, len(changes))
	for i, c := range changes {
		w, err := toCBOR(c)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		out[i] = w
	}
	return cborEncMode.Marshal(out)
}

// UnmarshalChangesCBOR decodes a CBOR batch.
func UnmarshalChangesCBOR(data []byte) ([]Change, error) {
	var in []changeCBOR
	if err := cbor.Unmarshal(data, &in); err != nil {
		return nil, NewFormatError("malformed change list: %v", err)
	}
	changes := make([]Change, 0, len(in))
	for i, w := range in {
		c, err := fromCBOR(w)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// MarshalEventCBOR encodes an event.
func MarshalEventCBOR(e Event) ([]byte, error) {
	out := eventCBOR{Id: e.Id, Tag: e.Tag}
	for i, a := range e.Args {
		b, err := marshalValueCBOR(a)
		if err != nil {
			return nil, fmt.Errorf("event arg %d: %w", i, err)
		}
		out.Args = append(out.Args, b)
	}
	return cborEncMode.Marshal(out)
}

// UnmarshalEventCBOR decodes an event.
func UnmarshalEventCBOR(data []byte) (Event, error) {
	var in eventCBOR
	if err := cbor.Unmarshal(data, &in); err != nil {
		return Event{}, NewFormatError("malformed event: %v", err)
	}
	e := Event{Id: in.Id, Tag: in.Tag}
	for i, raw := range in.Args {
		v, err := unmarshalValueCBOR(raw)
		if err != nil {
			return Event{}, NewFormatError("event arg %d: %v", i, err)
		}
		e.Args = append(e.Args, v)
	}
	return e, nil
}

func toCBOR(c Change) (changeCBOR, error) {
	switch ch := c.(type) {
	case Create:
		return changeCBOR{Type: cborCreate, Id: ch.Id, Tag: int32(ch.Tag)}, nil
	case PropertyChange:
		widget := ch.WidgetTag
		w := changeCBOR{Type: cborProperty, Id: ch.Id, Tag: int32(ch.Tag), Widget: &widget}
		if !IsNull(ch.Value) {
			b, err := marshalValueCBOR(ch.Value)
			if err != nil {
				return changeCBOR{}, err
			}
			w.Value = b
		}
		return w, nil
	case ModifierChange:
		w := changeCBOR{Type: cborModifier, Id: ch.Id, Elements: make([]cbor.RawMessage, len(ch.Elements))}
		for i, e := range ch.Elements {
			elem := []any{int32(e.Tag)}
			if !IsNull(e.Value) {
				elem = append(elem, FromValue(e.Value))
			}
			b, err := cborEncMode.Marshal(elem)
			if err != nil {
				return changeCBOR{}, fmt.Errorf("modifier element %d: %w", i, err)
			}
			w.Elements[i] = b
		}
		return w, nil
	case Add:
		return changeCBOR{Type: cborAdd, Id: ch.Id, Tag: int32(ch.Tag), ChildId: ch.ChildId, Index: ch.Index}, nil
	case Move:
		return changeCBOR{
			Type: cborMove, Id: ch.Id, Tag: int32(ch.Tag),
			FromIndex: ch.FromIndex, ToIndex: ch.ToIndex, Count: ch.Count,
		}, nil
	case Remove:
		return changeCBOR{
			Type: cborRemove, Id: ch.Id, Tag: int32(ch.Tag),
			Index: ch.Index, Count: ch.Count, RemovedIds: ch.RemovedIds,
		}, nil
	default:
		return changeCBOR{}, fmt.Errorf("unknown change type: %T", c)
	}
}

func fromCBOR(w changeCBOR) (Change, error) {
	switch w.Type {
	case cborCreate:
		return Create{Id: w.Id, Tag: WidgetTag(w.Tag)}, nil
	case cborProperty:
		widget := UnknownWidgetTag
		if w.Widget != nil {
			widget = *w.Widget
		}
		var v Value
		if len(w.Value) > 0 {
			decoded, err := unmarshalValueCBOR(w.Value)
			if err != nil {
				return nil, NewFormatError("property %d value: %v", w.Tag, err)
			}
			if !IsNull(decoded) {
				v = decoded
			}
		}
		return PropertyChange{Id: w.Id, WidgetTag: widget, Tag: PropertyTag(w.Tag), Value: v}, nil
	case cborModifier:
		elems := make([]ModifierElement, 0, len(w.Elements))
		for _, raw := range w.Elements {
			var parts []cbor.RawMessage
			if err := cbor.Unmarshal(raw, &parts); err != nil {
				return nil, NewFormatError("malformed modifier element: %v", err)
			}
			if len(parts) != 1 && len(parts) != 2 {
				return nil, NewFormatError("ModifierElement array may only have 1 or 2 values. Found: %d", len(parts))
			}
			var tag ModifierTag
			if err := cbor.Unmarshal(parts[0], &tag); err != nil {
				return nil, NewFormatError("malformed modifier tag: %v", err)
			}
			e := ModifierElement{Tag: tag}
			if len(parts) == 2 {
				v, err := unmarshalValueCBOR(parts[1])
				if err != nil {
					return nil, NewFormatError("modifier %d value: %v", tag, err)
				}
				if !IsNull(v) {
					e.Value = v
				}
			}
			elems = append(elems, e)
		}
		return ModifierChange{Id: w.Id, Elements: elems}, nil
	case cborAdd:
		return Add{Id: w.Id, Tag: ChildrenTag(w.Tag), ChildId: w.ChildId, Index: w.Index}, nil
	case cborMove:
		return Move{Id: w.Id, Tag: ChildrenTag(w.Tag), FromIndex: w.FromIndex, ToIndex: w.ToIndex, Count: w.Count}, nil
	case cborRemove:
		return Remove{Id: w.Id, Tag: ChildrenTag(w.Tag), Index: w.Index, Count: w.Count, RemovedIds: nonNilIds(w.RemovedIds)}, nil
	default:
		return nil, NewFormatError("unknown change type %d", w.Type)
	}
}

func marshalValueCBOR(v Value) (cbor.RawMessage, error) {
	b, err := cborEncMode.Marshal(FromValue(v))
	if err != nil {
		return nil, err
	}
	return cbor.RawMessage(b), nil
}

func unmarshalValueCBOR(data []byte) (Value, error) {
	var raw any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return ToValue(raw)
}
