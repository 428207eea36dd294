package webhook

import (
	"webhookrecv/internal/capture"
)

// ParseSlack summarizes a Slack Events API payload. Any JSON object yields a summary.
func ParseSlack(headers map[string]string, body capture.Payload) Summary {
	obj := structured(body)
	if obj == nil {
		return nil
	}

	event := getMap(obj, "event")

	return Summary{
		"type":       obj["type"],
		"event_type": event["type"],
		"channel":    event["channel"],
		"user":       event["user"],
		"text":       event["text"],
		"ts":         event["ts"],
	}
}
