package webhook

import (
	"strings"

	"webhookrecv/internal/capture"
)

// Helper functions

// structured returns the body as a JSON object, or nil for raw bodies
func structured(body capture.Payload) map[string]any {
	obj, ok := body.(capture.StructuredPayload)
	if !ok || obj == nil {
		return nil
	}
	return obj
}

// getMap safely extracts a nested object, returning an empty map when missing
func getMap(m map[string]any, key string) map[string]any {
	if val, ok := m[key]; ok {
		if nested, ok := val.(map[string]any); ok {
			return nested
		}
	}
	return map[string]any{}
}

// getValue returns the value at a dotted path, or nil when any step is missing
func getValue(m map[string]any, path string) any {
	keys := strings.Split(path, ".")
	for _, key := range keys[:len(keys)-1] {
		m = getMap(m, key)
	}
	return m[keys[len(keys)-1]]
}

// getString safely extracts a string value from the map
func getString(m map[string]any, key string) string {
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// getLen returns the length of a list value, 0 when missing or not a list
func getLen(m map[string]any, key string) int {
	if val, ok := m[key]; ok {
		if list, ok := val.([]any); ok {
			return len(list)
		}
	}
	return 0
}
