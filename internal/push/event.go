package push

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/nhle/notification-monitor/internal/model"
)

// ErrMalformedEvent is wrapped by every DecodeEvent failure.
var ErrMalformedEvent = errors.New("malformed push event")

// DecodeEvent decodes a push channel message. The message must be UTF-8
// JSON: an object with a non-empty string "kind" and an optional "body".
// Unknown kinds decode successfully; deciding what to do with them is
// the caller's job.
func DecodeEvent(data []byte) (model.PushEvent, error) {
	if !utf8.Valid(data) {
		return model.PushEvent{}, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformedEvent)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return model.PushEvent{}, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedEvent)
	}

	var ev model.PushEvent
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return model.PushEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Kind == "" {
		return model.PushEvent{}, fmt.Errorf("%w: missing kind", ErrMalformedEvent)
	}

	return ev, nil
}
