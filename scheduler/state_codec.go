package scheduler

import (
	"encoding/json"

	"github.com/callwave/callwave/domain"
)

// encodeScheduledCall and its decode counterpart round-trip a
// domain.ScheduledCall through JSON explicitly, rather than relying on
// state.Store to preserve the Go value's type: the postgres provider
// marshals/unmarshals through a JSONB column (so Get returns a
// map[string]any, not the original struct), while the inmemory provider
// hands back exactly what was Set. Encoding to a JSON string ourselves
// before Set makes both providers behave identically.
func encodeScheduledCall(sc domain.ScheduledCall) string {
	raw, err := json.Marshal(sc)
	if err != nil {
		return ""
	}
	return string(raw)
}

func decodeScheduledCall(value any) (domain.ScheduledCall, bool, error) {
	raw, ok := asJSONString(value)
	if !ok {
		return domain.ScheduledCall{}, false, nil
	}
	var sc domain.ScheduledCall
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return domain.ScheduledCall{}, false, err
	}
	return sc, true, nil
}

func encodeIndex(ids []string) string {
	raw, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeIndex(value any) []string {
	raw, ok := asJSONString(value)
	if !ok {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func asJSONString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case []byte:
		if len(v) == 0 {
			return "", false
		}
		return string(v), true
	default:
		return "", false
	}
}
