// Package ingest receives event-lifecycle messages from the buffer's
// asynchronous delivery channel and feeds them to the push dispatcher.
package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/jballard86/frigate-push-gateway/internal/push"
)

// Subscriber consumes lifecycle payloads from a NATS subject. Payloads are
// flat JSON objects; values that arrive as numbers or booleans are
// stringified so the classifier sees the same shape the webhook delivers.
type Subscriber struct {
	conn       *nats.Conn
	subject    string
	dispatcher *push.Dispatcher
	sub        *nats.Subscription
}

func NewSubscriber(conn *nats.Conn, subject string, dispatcher *push.Dispatcher) *Subscriber {
	return &Subscriber{conn: conn, subject: subject, dispatcher: dispatcher}
}

func (s *Subscriber) Start() error {
	sub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		data, err := DecodePayload(msg.Data)
		if err != nil {
			log.Printf("[WARN] Ingest: undecodable payload on %s: %v", s.subject, err)
			return
		}
		s.dispatcher.HandleRaw(data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	log.Printf("[DEBUG] Ingest: subscribed to %s", s.subject)
	return nil
}

func (s *Subscriber) Stop() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			log.Printf("[WARN] Ingest: unsubscribe: %v", err)
		}
	}
}

// DecodePayload flattens a JSON object into the string map the classifier
// consumes. Nested values are rejected; a push payload is flat by contract.
func DecodePayload(raw []byte) (map[string]string, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		case nil:
			// Skip nulls; the classifier defaults missing fields anyway.
		default:
			return nil, fmt.Errorf("field %q: unsupported nested value", k)
		}
	}
	return out, nil
}
