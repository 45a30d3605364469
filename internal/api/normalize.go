package api

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// maxUnwrapDepth bounds how many envelopes are peeled off a response.
const maxUnwrapDepth = 3

// unwrap peels response envelopes until it reaches the payload. At each level the
// named keys win over a generic "data" wrapper, so `{data: {user: {...}}}`,
// `{user: {...}}`, `{data: {...}}` and a bare `{...}` all normalize to the same
// object. Arrays and scalars are returned as they are.
func unwrap(raw json.RawMessage, keys ...string) json.RawMessage {
	for depth := 0; depth < maxUnwrapDepth; depth++ {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return raw
		}
		next, ok := pick(obj, keys...)
		if !ok {
			next, ok = obj["data"]
		}
		if !ok || isNull(next) {
			return raw
		}
		raw = next
	}
	return raw
}

func pick(obj map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// decode normalizes body and unmarshals it into out.
func decode(body []byte, out interface{}, keys ...string) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(unwrap(body, keys...), out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
