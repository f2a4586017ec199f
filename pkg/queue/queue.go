package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueueConfig tunes the worker pool and the retry policy.
type QueueConfig struct {
	Workers    int           // worker goroutines draining the list
	QueueSize  int           // max pending messages; 0 means unbounded
	RetryLimit int           // attempts before the dead-letter list
	RetryDelay time.Duration // delay before a failed message is requeued
}

// Message is the envelope stored on the Redis list.
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Attempts  int         `json:"attempts"`
	Timestamp time.Time   `json:"timestamp"`
}

// ParsePayload recovers a typed payload. Messages that crossed Redis arrive
// as json.RawMessage; locally enqueued ones may still be the typed value.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var result T

	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &result, nil
	case map[string]interface{}:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		if err := json.Unmarshal(b, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &result, nil
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
}
