package push

import (
	"encoding/json"
	"github.com/pkg/errors"
	"time"
)

// EventKind names a push event.  The known kinds are listed below; any other
// string is accepted too, and is dispatched to whatever listeners registered for it.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventError        EventKind = "error"

	EventJobStatus         EventKind = "job_status"
	EventScannerStatus     EventKind = "scanner_status"
	EventBatchScanProgress EventKind = "batch_scan_progress"
)

var KnownEventKinds = []EventKind{
	EventConnected,
	EventDisconnected,
	EventError,
	EventJobStatus,
	EventScannerStatus,
	EventBatchScanProgress,
}

func (k EventKind) IsKnown() bool {
	for _, known := range KnownEventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsLocal is true for kinds produced by the client itself rather than by the server.
func (k EventKind) IsLocal() bool {
	return k == EventConnected || k == EventDisconnected || k == EventError
}

// Envelope is the wire format of every inbound frame.
type Envelope struct {
	Type    EventKind       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Time    *time.Time      `json:"time,omitempty"`
}

func ParseEnvelope(data []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, errors.Wrapf(err, "unable to unmarshal envelope")
	}
	if env.Type == "" {
		return nil, errors.Errorf("envelope missing type")
	}
	return env, nil
}

// Event is what listeners receive.  Payload is nil for connected/disconnected;
// Err is only set for EventError.
type Event struct {
	Kind    EventKind
	Payload json.RawMessage
	Err     error
}

// Decode unmarshals the payload into obj.
func (e *Event) Decode(obj interface{}) error {
	if len(e.Payload) == 0 {
		return errors.Errorf("event %s has no payload", e.Kind)
	}
	return errors.Wrapf(json.Unmarshal(e.Payload, obj), "unable to unmarshal %s payload", e.Kind)
}
