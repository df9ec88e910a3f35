package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event is a callback invocation flowing from host to guest, the mirror
// image of PropertyChange.
type Event struct {
	Id   Id
	Tag  EventTag
	Args []Value
}

func (e Event) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = ValueString(a)
	}
	return fmt.Sprintf("Event(id=%d, tag=%d, args=[%s])", e.Id, e.Tag, strings.Join(args, ", "))
}

type eventJSON struct {
	Id   Id                `json:"id"`
	Tag  EventTag          `json:"tag"`
	Args []json.RawMessage `json:"args,omitempty"`
}

// MarshalJSON implements json.Marshaler for Event.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{Id: e.Id, Tag: e.Tag}
	for i, a := range e.Args {
		b, err := MarshalValue(a)
		if err != nil {
			return nil, fmt.Errorf("event arg %d: %w", i, err)
		}
		out.Args = append(out.Args, b)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for Event.
func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return NewFormatError("malformed event: %v", err)
	}
	e.Id = in.Id
	e.Tag = in.Tag
	e.Args = nil
	for i, raw := range in.Args {
		v, err := UnmarshalValue(raw)
		if err != nil {
			return NewFormatError("event arg %d: %v", i, err)
		}
		e.Args = append(e.Args, v)
	}
	return nil
}
