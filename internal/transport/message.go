package transport

import (
	"encoding/json"
	"fmt"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// Frame types of the JSON control messages.
const (
	typeHello  = "hello"
	typeResult = "result"
	typeEvent  = "event"
)

// hello opens a session. The guest sends its version and the encoding it
// will use for batches; the host answers with its own version and the id of
// the tree it opened.
type hello struct {
	Type     string `json:"type"`
	Version  string `json:"version"`
	Encoding string `json:"encoding,omitempty"`
	Session  string `json:"session,omitempty"`
}

// result acknowledges one batch.
type result struct {
	Type    string `json:"type"`
	Batch   string `json:"batch"`
	Seq     int64  `json:"seq"`
	Changes int    `json:"changes"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// eventFrame carries a host event on JSON sessions. CBOR sessions send
// events as bare binary frames.
type eventFrame struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event"`
}

type envelope struct {
	Type string `json:"type"`
}

func decodeEnvelope(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("malformed frame: %w", err)
	}
	return env.Type, nil
}

// BatchError is a batch the host refused, as reported back to the guest.
type BatchError struct {
	Batch  string
	Status string
	Code   protocol.ErrorCode
	Msg    string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s %s: %s", e.Batch, e.Status, e.Msg)
}
