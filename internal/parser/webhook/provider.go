package webhook

import (
	"fmt"
	"strings"

	"webhookrecv/internal/capture"
)

// Provider identifies the service a webhook came from
type Provider string

const (
	// GitHub webhooks carry an X-GitHub-Event header
	GitHub Provider = "github"
	// Stripe webhooks carry a Stripe-Signature header
	Stripe Provider = "stripe"
	// Slack Events API payloads
	Slack Provider = "slack"
)

// Summary is the normalized view of a provider payload
type Summary map[string]any

// Providers returns every supported provider
func Providers() []Provider {
	return []Provider{GitHub, Stripe, Slack}
}

// ParseProvider resolves a provider name, ignoring case
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	switch p {
	case GitHub, Stripe, Slack:
		return p, nil
	}
	return "", fmt.Errorf("unknown webhook provider %q (supported: github, stripe, slack)", name)
}

// Parse extracts the provider summary from a payload.
// A nil Summary means the payload could not be classified.
func (p Provider) Parse(headers map[string]string, body capture.Payload) Summary {
	switch p {
	case GitHub:
		return ParseGitHub(headers, body)
	case Stripe:
		return ParseStripe(headers, body)
	case Slack:
		return ParseSlack(headers, body)
	}
	return nil
}

// String implements fmt.Stringer
func (p Provider) String() string {
	return string(p)
}
