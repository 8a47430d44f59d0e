package tabsync

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	DefaultChannel     = "streamfluency-vocabulary"
	DefaultFallbackKey = "streamfluency_vocabulary_sync"
	DefaultExpiry      = 5000 * time.Millisecond
	// fallback log entries outlive the staleness bound
	DefaultRetention = 2 * DefaultExpiry
)

// mutation kind carried by a sync message
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionClear  Action = "clear"
)

func (a Action) Valid() bool {
	switch a {
	case ActionAdd, ActionUpdate, ActionDelete, ActionClear:
		return true
	}
	return false
}

// one vocabulary mutation broadcast to other instances
type Message struct {
	Action    Action          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(action Action, data any, now time.Time) (Message, error) {
	msg := Message{Action: action, Timestamp: now.UnixMilli()}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", action, err)
	}
	msg.Data = raw
	return msg, nil
}

// age relative to now, negative for messages from the future
func (m Message) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-m.Timestamp) * time.Millisecond
}

// wire form shared by the transports, origin identifies the sending instance
type envelope struct {
	Origin  string  `json:"origin"`
	Message Message `json:"message"`
}

func encodeEnvelope(origin string, msg Message) ([]byte, error) {
	return json.Marshal(envelope{Origin: origin, Message: msg})
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}
