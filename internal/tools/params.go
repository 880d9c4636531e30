package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/brandon/mcp-mailbox/internal/normalize"
)

// ValidationError rejects a call before any protocol work is done
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Param, e.Reason)
}

func missing(param string) error {
	return &ValidationError{Param: param, Reason: "is required"}
}

func requireString(params map[string]interface{}, key string) (string, error) {
	s := optionalString(params, key)
	if s == "" {
		return "", missing(key)
	}
	return s, nil
}

func optionalString(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return strings.TrimSpace(s)
}

func optionalBool(params map[string]interface{}, key string, def bool) (bool, error) {
	switch v := params[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, &ValidationError{Param: key, Reason: fmt.Sprintf("%q is not a boolean", v)}
		}
		return b, nil
	default:
		return false, &ValidationError{Param: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
}

func optionalInt(params map[string]interface{}, key string, def int) (int, error) {
	switch v := params[key].(type) {
	case nil:
		return def, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, &ValidationError{Param: key, Reason: "must be a whole number"}
		}
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, &ValidationError{Param: key, Reason: fmt.Sprintf("%q is not a number", v)}
		}
		return n, nil
	default:
		return 0, &ValidationError{Param: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
}

func toID(key string, v interface{}) (uint32, error) {
	switch n := v.(type) {
	case float64:
		if n < 1 || n > math.MaxUint32 || n != math.Trunc(n) {
			return 0, &ValidationError{Param: key, Reason: fmt.Sprintf("%v is not a message id", n)}
		}
		return uint32(n), nil
	case string:
		id, err := strconv.ParseUint(strings.TrimSpace(n), 10, 32)
		if err != nil || id == 0 {
			return 0, &ValidationError{Param: key, Reason: fmt.Sprintf("%q is not a message id", n)}
		}
		return uint32(id), nil
	default:
		return 0, &ValidationError{Param: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
}

func requireID(params map[string]interface{}, key string) (uint32, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, missing(key)
	}
	return toID(key, v)
}

// requireIDs accepts a JSON array or a comma-separated string
func requireIDs(params map[string]interface{}, key string) ([]uint32, error) {
	var raw []interface{}
	switch v := params[key].(type) {
	case nil:
		return nil, missing(key)
	case []interface{}:
		raw = v
	case string:
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) != "" {
				raw = append(raw, part)
			}
		}
	default:
		raw = []interface{}{v}
	}
	if len(raw) == 0 {
		return nil, missing(key)
	}

	ids := make([]uint32, 0, len(raw))
	for _, item := range raw {
		id, err := toID(key, item)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// addressList accepts a JSON array or an address list header value
func addressList(params map[string]interface{}, key string) []string {
	var out []string
	switch v := params[key].(type) {
	case string:
		out = normalize.SplitAddressList(v)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": description,
	}
}

func idProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
		"minimum":     1,
	}
}
