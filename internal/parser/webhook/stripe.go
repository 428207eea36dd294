package webhook

import (
	"strings"

	"webhookrecv/internal/capture"
)

// ParseStripe summarizes a Stripe event; charge and customer events carry extra fields
func ParseStripe(headers map[string]string, body capture.Payload) Summary {
	obj := structured(body)
	if obj == nil {
		return nil
	}

	eventType := getString(obj, "type")
	if eventType == "" {
		return nil
	}

	parsed := Summary{
		"event":   eventType,
		"id":      obj["id"],
		"created": obj["created"],
	}

	data := getMap(getMap(obj, "data"), "object")

	switch {
	case strings.Contains(eventType, "charge"):
		parsed["amount"] = data["amount"]
		parsed["currency"] = data["currency"]
		parsed["status"] = data["status"]
	case strings.Contains(eventType, "customer"):
		parsed["customer_id"] = data["id"]
		parsed["email"] = data["email"]
	}

	return parsed
}
