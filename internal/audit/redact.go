package audit

import (
	"encoding/json"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"password":        true,
	"newpassword":     true,
	"currentpassword": true,
	"otp":             true,
	"token":           true,
	"mfatoken":        true,
	"secret":          true,
	"qrcodeurl":       true,
	"resettoken":      true,
	"authorization":   true,
}

// Redact replaces secret values anywhere in a decoded JSON document.
func Redact(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if sensitiveKeys[strings.ToLower(k)] {
				out[k] = redacted
				continue
			}
			out[k] = Redact(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Redact(val)
		}
		return out
	default:
		return v
	}
}

// redactJSON decodes body and redacts it. Non-JSON bodies are summarised by size.
func redactJSON(body []byte, truncated bool) interface{} {
	if len(body) == 0 {
		return nil
	}
	var v interface{}
	if !truncated && json.Unmarshal(body, &v) == nil {
		return Redact(v)
	}
	return map[string]interface{}{"omitted": true, "bytes": len(body), "truncated": truncated}
}
