package protocol

import "fmt"

// Encoding names a wire encoding for change batches and events.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

// ParseEncoding validates an encoding name. The empty string means JSON.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingCBOR:
		return EncodingCBOR, nil
	default:
		return "", fmt.Errorf("unknown encoding %q", s)
	}
}

// EncodeChanges encodes a batch.
func (enc Encoding) EncodeChanges(changes []Change) ([]byte, error) {
	switch enc {
	case EncodingJSON:
		return MarshalChanges(changes)
	case EncodingCBOR:
		return MarshalChangesCBOR(changes)
	default:
		return nil, fmt.Errorf("unknown encoding %q", string(enc))
	}
}

// DecodeChanges decodes a batch.
func (enc Encoding) DecodeChanges(data []byte) ([]Change, error) {
	switch enc {
	case EncodingJSON:
		return UnmarshalChanges(data)
	case EncodingCBOR:
		return UnmarshalChangesCBOR(data)
	default:
		return nil, fmt.Errorf("unknown encoding %q", string(enc))
	}
}

// EncodeEvent encodes an event.
func (enc Encoding) EncodeEvent(e Event) ([]byte, error) {
	switch enc {
	case EncodingJSON:
		return e.MarshalJSON()
	case EncodingCBOR:
		return MarshalEventCBOR(e)
	default:
		return nil, fmt.Errorf("unknown encoding %q", string(enc))
	}
}

// DecodeEvent decodes an event.
func (enc Encoding) DecodeEvent(data []byte) (Event, error) {
	switch enc {
	case EncodingJSON:
		var e Event
		if err := e.UnmarshalJSON(data); err != nil {
			return Event{}, err
		}
		return e, nil
	case EncodingCBOR:
		return UnmarshalEventCBOR(data)
	default:
		return Event{}, fmt.Errorf("unknown encoding %q", string(enc))
	}
}
