package bus

import (
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/workerhealth/health"
)

// ThreadID identifies an execution context. Workers are numbered from 0.
type ThreadID int

// MainThread identifies the main context.
const MainThread ThreadID = ThreadID(health.NoWorker)

// Label returns "main" or "worker-N".
func (t ThreadID) Label() string {
	return health.ThreadLabel(int(t))
}

// IsMain reports whether t is the main context.
func (t ThreadID) IsMain() bool {
	return t < 0
}

// WorkerIndex returns the worker index, or health.NoWorker for main.
func (t ThreadID) WorkerIndex() int {
	if t.IsMain() {
		return health.NoWorker
	}
	return int(t)
}

func (t ThreadID) String() string {
	return t.Label()
}

// MarshalText encodes the thread as its label.
func (t ThreadID) MarshalText() ([]byte, error) {
	return []byte(t.Label()), nil
}

// UnmarshalText decodes a thread label.
func (t *ThreadID) UnmarshalText(b []byte) error {
	id, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*t = id
	return nil
}

// ParseLabel parses a thread label produced by Label.
func ParseLabel(label string) (ThreadID, error) {
	idx, ok := health.ParseThreadLabel(label)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownThread, label)
	}
	return ThreadID(idx), nil
}

// MessageType discriminates bus messages.
type MessageType string

const (
	StatusRequest  MessageType = "STATUS_REQUEST"
	StatusResponse MessageType = "STATUS_RESPONSE"
)

// Message is the unit exchanged between contexts.
type Message struct {
	Type      MessageType `json:"type"`
	RequestID uint64      `json:"requestId"`
	From      ThreadID    `json:"from"`

	// Set on responses only.
	WorkerIndex  int           `json:"workerIndex,omitempty"`
	IsMainThread bool          `json:"isMainThread,omitempty"`
	Statuses     []StatusEntry `json:"statuses,omitempty"`
}

// StatusEntry is one component status. On the wire it is the two-element
// array [name, summary].
type StatusEntry struct {
	Name    string
	Summary health.Summary
}

// MarshalJSON encodes the entry as [name, summary].
func (e StatusEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Name, e.Summary})
}

// UnmarshalJSON decodes [name, summary].
func (e *StatusEntry) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("bus: status entry: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("bus: status entry: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.Name); err != nil {
		return fmt.Errorf("bus: status entry name: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.Summary); err != nil {
		return fmt.Errorf("bus: status entry summary: %w", err)
	}
	return nil
}

// EntriesFromSummaries converts a registry snapshot into wire entries.
func EntriesFromSummaries(in []health.NamedSummary) []StatusEntry {
	out := make([]StatusEntry, len(in))
	for i, s := range in {
		out[i] = StatusEntry{Name: s.Name, Summary: s.Summary}
	}
	return out
}

// Encode serializes a message as JSON.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a JSON message.
func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("bus: decode message: %w", err)
	}
	return m, nil
}
