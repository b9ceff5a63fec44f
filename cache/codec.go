package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// The remote tier stores everything as strings: primitives as their textual
// form, arrays as JSON text, objects as field-to-string hashes. The functions
// here translate between those wire forms and the native values kept in the
// local tier.

// encodePrimitive renders a scalar to its textual form.
func encodePrimitive(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("cache: cannot encode value of type %T: %w", v, err)
		}
		return string(data), nil
	}
}

// decodePrimitive recovers a native value from its textual form. With parse
// set, a lossless JSON parse is attempted; anything unparseable comes back as
// the raw string. With parse unset the raw string is returned unchanged.
func decodePrimitive(s string, parse bool) interface{} {
	if !parse {
		return s
	}
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// encodeArray renders a sequence as JSON text.
func encodeArray(a []interface{}) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("cache: cannot encode array: %w", err)
	}
	return string(data), nil
}

// decodeArray parses JSON text back into a sequence. Ill-formed text is
// reported as absent rather than an error.
func decodeArray(s string) ([]interface{}, bool) {
	var a []interface{}
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return nil, false
	}
	return a, true
}

// encodeObject flattens top-level fields to their textual form.
func encodeObject(o map[string]interface{}) (map[string]string, error) {
	fields := make(map[string]string, len(o))
	for k, v := range o {
		s, err := encodePrimitive(v)
		if err != nil {
			return nil, err
		}
		fields[k] = s
	}
	return fields, nil
}

// normalizeArray maps a local-tier value onto the sequence contract: the
// JSON text written by a set, or a sequence already decoded by the sync
// bridge. Any other shape reads as absent.
func normalizeArray(v interface{}) ([]interface{}, bool, error) {
	switch val := v.(type) {
	case []interface{}:
		return val, true, nil
	case string:
		a, ok := decodeArray(val)
		return a, ok, nil
	default:
		return nil, false, nil
	}
}

// decodeObject recovers a native mapping from a field hash. Each field runs
// through decodePrimitive when parse is set, otherwise values stay strings.
func decodeObject(m map[string]string, parse bool) map[string]interface{} {
	o := make(map[string]interface{}, len(m))
	for k, v := range m {
		o[k] = decodePrimitive(v, parse)
	}
	return o
}
