package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
)

// Normalize turns a raw platform response into a Result or an *Error.
//
// Responses come either as the object itself or wrapped as
// {"statusCode": n, "body": "<json string>"}; the wrapper's status code takes
// precedence over the transport one. Bodies carrying "error", "errorStack" or
// "errors", or any status outside [200, 304), become an *Error.
func Normalize(statusCode int, raw []byte) (*Result, error) {
	body := jsondoc.Doc{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		d, err := jsondoc.Decode(raw)
		if err != nil {
			if statusCode >= http.StatusOK && statusCode < http.StatusNotModified {
				return nil, &Error{StatusCode: statusCode, Message: "unreadable platform response", Err: err}
			}
			return nil, &Error{StatusCode: statusCode, Message: truncate(string(raw))}
		}
		if d != nil {
			body = d
		}
	}

	body, statusCode, err := unwrap(body, statusCode)
	if err != nil {
		return nil, err
	}

	if msg, ok := errorMarker(body); ok {
		return nil, &Error{StatusCode: statusCode, Message: msg}
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusNotModified {
		return nil, &Error{StatusCode: statusCode, Message: fmt.Sprintf("unexpected platform status %d", statusCode)}
	}
	return &Result{StatusCode: statusCode, Body: body}, nil
}

func unwrap(d jsondoc.Doc, statusCode int) (jsondoc.Doc, int, error) {
	inner, ok := d["body"].(string)
	if !ok {
		return d, statusCode, nil
	}
	if code, ok := d.Float("statusCode"); ok {
		statusCode = int(code)
	}
	if strings.TrimSpace(inner) == "" {
		return jsondoc.Doc{}, statusCode, nil
	}
	unwrapped, err := jsondoc.Decode([]byte(inner))
	if err != nil {
		return nil, statusCode, &Error{StatusCode: statusCode, Message: "unreadable wrapped body", Err: err}
	}
	if unwrapped == nil {
		return jsondoc.Doc{}, statusCode, nil
	}
	return unwrapped, statusCode, nil
}

func errorMarker(d jsondoc.Doc) (string, bool) {
	for _, key := range []string{"error", "errorStack", "errors"} {
		if !d.Has(key) {
			continue
		}
		return describe(d[key]), true
	}
	return "", false
}

func describe(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		if msg := jsondoc.Doc(t).Str("message"); msg != "" {
			return msg
		}
	case jsondoc.Doc:
		if msg := t.Str("message"); msg != "" {
			return msg
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return truncate(string(b))
}

func truncate(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
