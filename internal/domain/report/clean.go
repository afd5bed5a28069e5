package report

// CleanPayload returns a copy of p with empty containers stripped: empty
// strings, empty maps, and empty slices are dropped, recursively. Explicit
// nulls are kept, they carry meaning (a cleared field) unlike an empty
// container.
func CleanPayload(p Payload) Payload {
	cleaned, _ := cleanValue(map[string]interface{}(p))
	if cleaned == nil {
		return Payload{}
	}
	return Payload(cleaned.(map[string]interface{}))
}

// MergePayload applies a cleaned update on top of the prior document.
// Fields absent from update keep their prior value; an explicit null clears
// the field. Present fields overwrite wholesale, nested maps included. The
// result never stores nulls, they only exist in transit to express clearing.
func MergePayload(prior, update Payload) Payload {
	out := make(Payload, len(prior)+len(update))
	for k, v := range prior {
		out[k] = v
	}
	for k, v := range update {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// cleanValue reports the cleaned value and whether it should be kept.
func cleanValue(v interface{}) (interface{}, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case string:
		if val == "" {
			return nil, false
		}
		return val, true
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if cleaned, keep := cleanValue(inner); keep {
				out[k] = cleaned
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case Payload:
		return cleanValue(map[string]interface{}(val))
	case []interface{}:
		out := make([]interface{}, 0, len(val))
		for _, inner := range val {
			if cleaned, keep := cleanValue(inner); keep {
				out = append(out, cleaned)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		return val, true
	}
}

// HasContent reports whether the payload has at least one non-empty field.
// Saves of content-free payloads are skipped so the version history never
// accumulates no-op snapshots.
func HasContent(p Payload) bool {
	for _, v := range p {
		if hasContentValue(v) {
			return true
		}
	}
	return false
}

func hasContentValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case map[string]interface{}:
		for _, inner := range val {
			if hasContentValue(inner) {
				return true
			}
		}
		return false
	case Payload:
		return hasContentValue(map[string]interface{}(val))
	case []interface{}:
		for _, inner := range val {
			if hasContentValue(inner) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
