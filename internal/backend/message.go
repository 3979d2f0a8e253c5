package backend

import (
	"bytes"
	"encoding/json"
	"strings"
)

// User-facing fallback messages.
const (
	MsgConversionFailed  = "Conversion failed. Please try again."
	MsgServerUnreachable = "Could not reach the conversion server. Please check your connection and try again."
)

// ErrorMessage extracts the human-readable message from a failed response body.
//
// Order: JSON "detail", then JSON "error", then the raw body text, then
// MsgConversionFailed for an empty body. null, false, 0 and "" count as
// absent. String fields are returned exactly as sent; other values are
// rendered as compact JSON.
func ErrorMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := fieldText(payload["detail"]); msg != "" {
			return msg
		}
		if msg := fieldText(payload["error"]); msg != "" {
			return msg
		}
	}
	if strings.TrimSpace(string(body)) != "" {
		return string(body)
	}
	return MsgConversionFailed
}

func fieldText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		switch x := v.(type) {
		case nil:
			return ""
		case bool:
			if !x {
				return ""
			}
		case float64:
			if x == 0 {
				return ""
			}
		case string:
			return x
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}
