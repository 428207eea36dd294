package webhook

import (
	"strings"

	"webhookrecv/internal/capture"
)

const (
	githubEventHeader     = "x-github-event"
	stripeSignatureHeader = "stripe-signature"
	slackVerificationType = "url_verification"
)

// Detect guesses the provider of a payload from its headers and body.
// Checks run in order and the first match wins.
func Detect(headers map[string]string, body capture.Payload) (Provider, bool) {
	if hasHeader(headers, githubEventHeader) {
		return GitHub, true
	}
	if hasHeader(headers, stripeSignatureHeader) {
		return Stripe, true
	}
	if obj, ok := body.(capture.StructuredPayload); ok {
		if t, ok := obj["type"].(string); ok && t == slackVerificationType {
			return Slack, true
		}
	}
	return "", false
}

// hasHeader reports whether a header key is present, compared case-insensitively
func hasHeader(headers map[string]string, name string) bool {
	_, ok := headerValue(headers, name)
	return ok
}

// headerValue looks up a header value, compared case-insensitively
func headerValue(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
