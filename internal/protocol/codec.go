package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	kindCreate   = "create"
	kindProperty = "property"
	kindModifier = "modifier"
	kindAdd      = "add"
	kindMove     = "move"
	kindRemove   = "remove"
)

type createJSON struct {
	Type string    `json:"type"`
	Id   Id        `json:"id"`
	Tag  WidgetTag `json:"tag"`
}

type propertyJSON struct {
	Type   string          `json:"type"`
	Id     Id              `json:"id"`
	Widget WidgetTag       `json:"widget"`
	Tag    PropertyTag     `json:"tag"`
	Value  json.RawMessage `json:"value,omitempty"`
}

type modifierJSON struct {
	Type     string            `json:"type"`
	Id       Id                `json:"id"`
	Elements []json.RawMessage `json:"elements"`
}

type addJSON struct {
	Type    string      `json:"type"`
	Id      Id          `json:"id"`
	Tag     ChildrenTag `json:"tag"`
	ChildId Id          `json:"childId"`
	Index   int         `json:"index"`
}

type moveJSON struct {
	Type      string      `json:"type"`
	Id        Id          `json:"id"`
	Tag       ChildrenTag `json:"tag"`
	FromIndex int         `json:"fromIndex"`
	ToIndex   int         `json:"toIndex"`
	Count     int         `json:"count"`
}

type removeJSON struct {
	Type       string      `json:"type"`
	Id         Id          `json:"id"`
	Tag        ChildrenTag `json:"tag"`
	Index      int         `json:"index"`
	Count      int         `json:"count"`
	RemovedIds []Id        `json:"removedIds"`
}

// changeJSON is the union of every variant's fields, used for decoding.
// Pointers distinguish absent fields from zero values.
type changeJSON struct {
	Type       string            `json:"type"`
	Id         *Id               `json:"id"`
	Tag        *int32            `json:"tag"`
	Widget     *WidgetTag        `json:"widget"`
	Value      json.RawMessage   `json:"value"`
	Elements   []json.RawMessage `json:"elements"`
	ChildId    *Id               `json:"childId"`
	Index      *int              `json:"index"`
	FromIndex  *int              `json:"fromIndex"`
	ToIndex    *int              `json:"toIndex"`
	Count      *int              `json:"count"`
	RemovedIds []Id              `json:"removedIds"`
}

// MarshalChange encodes one change as a JSON object tagged by "type".
func MarshalChange(c Change) ([]byte, error) {
	switch ch := c.(type) {
	case Create:
		return json.Marshal(createJSON{Type: kindCreate, Id: ch.Id, Tag: ch.Tag})
	case PropertyChange:
		out := propertyJSON{Type: kindProperty, Id: ch.Id, Widget: ch.WidgetTag, Tag: ch.Tag}
		if !IsNull(ch.Value) {
			v, err := MarshalValue(ch.Value)
			if err != nil {
				return nil, fmt.Errorf("property %d value: %w", ch.Tag, err)
			}
			out.Value = v
		}
		return json.Marshal(out)
	case ModifierChange:
		elems := make([]json.RawMessage, len(ch.Elements))
		for i, e := range ch.Elements {
			b, err := marshalModifierElement(e)
			if err != nil {
				return nil, fmt.Errorf("modifier element %d: %w", i, err)
			}
			elems[i] = b
		}
		return json.Marshal(modifierJSON{Type: kindModifier, Id: ch.Id, Elements: elems})
	case Add:
		return json.Marshal(addJSON{Type: kindAdd, Id: ch.Id, Tag: ch.Tag, ChildId: ch.ChildId, Index: ch.Index})
	case Move:
		return json.Marshal(moveJSON{
			Type: kindMove, Id: ch.Id, Tag: ch.Tag,
			FromIndex: ch.FromIndex, ToIndex: ch.ToIndex, Count: ch.Count,
		})
	case Remove:
		return json.Marshal(removeJSON{
			Type: kindRemove, Id: ch.Id, Tag: ch.Tag,
			Index: ch.Index, Count: ch.Count, RemovedIds: nonNilIds(ch.RemovedIds),
		})
	default:
		return nil, fmt.Errorf("unknown change type: %T", c)
	}
}

// MarshalChanges encodes a batch as a JSON array.
func MarshalChanges(changes []Change) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, c := range changes {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalChange(c)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalChanges decodes a JSON array of changes. Any malformed entry
// fails the whole batch with a format error.
func UnmarshalChanges(data []byte) ([]Change, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewFormatError("malformed change list: %v", err)
	}
	changes := make([]Change, 0, len(raw))
	for i, r := range raw {
		c, err := UnmarshalChange(r)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// UnmarshalChange decodes one JSON change object.
func UnmarshalChange(data []byte) (Change, error) {
	var w changeJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, NewFormatError("malformed change: %v", err)
	}
	if w.Id == nil {
		return nil, NewFormatError("%s change missing field \"id\"", w.Type)
	}
	id := *w.Id

	switch w.Type {
	case kindCreate:
		if w.Tag == nil {
			return nil, missingField(w.Type, "tag")
		}
		return Create{Id: id, Tag: WidgetTag(*w.Tag)}, nil

	case kindProperty:
		if w.Tag == nil {
			return nil, missingField(w.Type, "tag")
		}
		widget := UnknownWidgetTag
		if w.Widget != nil {
			widget = *w.Widget
		}
		var v Value
		if len(w.Value) > 0 {
			decoded, err := UnmarshalValue(w.Value)
			if err != nil {
				return nil, NewFormatError("property %d value: %v", *w.Tag, err)
			}
			if !IsNull(decoded) {
				v = decoded
			}
		}
		return PropertyChange{Id: id, WidgetTag: widget, Tag: PropertyTag(*w.Tag), Value: v}, nil

	case kindModifier:
		elems := make([]ModifierElement, 0, len(w.Elements))
		for _, raw := range w.Elements {
			e, err := unmarshalModifierElement(raw)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return ModifierChange{Id: id, Elements: elems}, nil

	case kindAdd:
		if w.Tag == nil {
			return nil, missingField(w.Type, "tag")
		}
		if w.ChildId == nil {
			return nil, missingField(w.Type, "childId")
		}
		if w.Index == nil {
			return nil, missingField(w.Type, "index")
		}
		return Add{Id: id, Tag: ChildrenTag(*w.Tag), ChildId: *w.ChildId, Index: *w.Index}, nil

	case kindMove:
		if w.Tag == nil {
			return nil, missingField(w.Type, "tag")
		}
		if w.FromIndex == nil {
			return nil, missingField(w.Type, "fromIndex")
		}
		if w.ToIndex == nil {
			return nil, missingField(w.Type, "toIndex")
		}
		if w.Count == nil {
			return nil, missingField(w.Type, "count")
		}
		return Move{Id: id, Tag: ChildrenTag(*w.Tag), FromIndex: *w.FromIndex, ToIndex: *w.ToIndex, Count: *w.Count}, nil

	case kindRemove:
		if w.Tag == nil {
			return nil, missingField(w.Type, "tag")
		}
		if w.Index == nil {
			return nil, missingField(w.Type, "index")
		}
		if w.Count == nil {
			return nil, missingField(w.Type, "count")
		}
		return Remove{Id: id, Tag: ChildrenTag(*w.Tag), Index: *w.Index, Count: *w.Count, RemovedIds: nonNilIds(w.RemovedIds)}, nil

	default:
		return nil, NewFormatError("unknown change type %q", w.Type)
	}
}

func missingField(kind, field string) *Error {
	return NewFormatError("%s change missing field %q", kind, field)
}

func marshalModifierElement(e ModifierElement) ([]byte, error) {
	if IsNull(e.Value) {
		return json.Marshal([]ModifierTag{e.Tag})
	}
	v, err := MarshalValue(e.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]json.RawMessage{json.RawMessage(fmt.Sprintf("%d", e.Tag)), v})
}

func unmarshalModifierElement(data []byte) (ModifierElement, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return ModifierElement{}, NewFormatError("malformed modifier element: %v", err)
	}
	if len(parts) != 1 && len(parts) != 2 {
		return ModifierElement{}, NewFormatError("ModifierElement array may only have 1 or 2 values. Found: %d", len(parts))
	}
	var tag ModifierTag
	if err := json.Unmarshal(parts[0], &tag); err != nil {
		return ModifierElement{}, NewFormatError("malformed modifier tag: %v", err)
	}
	e := ModifierElement{Tag: tag}
	if len(parts) == 2 {
		v, err := UnmarshalValue(parts[1])
		if err != nil {
			return ModifierElement{}, NewFormatError("modifier %d value: %v", tag, err)
		}
		if !IsNull(v) {
			e.Value = v
		}
	}
	return e, nil
}

func nonNilIds(ids []Id) []Id {
	if ids == nil {
		return []Id{}
	}
	return ids
}
