package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"webhookrecv/internal/capture"
	"webhookrecv/internal/enrichment"

	"github.com/pterm/pterm"
)

// rawPreviewLimit is how much of a non-JSON body is printed
const rawPreviewLimit = 500

// importantHeaders are echoed to the console for every request
var importantHeaders = []string{"content-type", "user-agent", "x-github-event", "stripe-signature"}

// Console prints captured requests to a terminal
type Console struct {
	out io.Writer
	geo *enrichment.GeoIPEnricher
}

// NewConsole creates a console writing to stdout; geo may be nil
func NewConsole(geo *enrichment.GeoIPEnricher) *Console {
	return NewConsoleWriter(os.Stdout, geo)
}

// NewConsoleWriter creates a console writing to out
func NewConsoleWriter(out io.Writer, geo *enrichment.GeoIPEnricher) *Console {
	return &Console{out: out, geo: geo}
}

// Show prints one captured request
func (c *Console) Show(req capture.CapturedRequest) {
	var b strings.Builder

	header := pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprintf("%s %s", req.Method, req.Path)
	if provider := req.ProviderType(); provider != "" {
		header += " " + pterm.Magenta("("+provider+")")
	}
	b.WriteString("\n" + header + "\n")

	from := req.SourceAddress
	if geo := c.geo.Lookup(req.SourceAddress); geo != nil {
		if s := geo.String(); s != "" {
			from += " [" + s + "]"
		}
	}
	b.WriteString(pterm.Gray(fmt.Sprintf("ID: %s | Time: %s | From: %s",
		req.ID, req.Timestamp.Format("15:04:05"), from)) + "\n")

	if summary := req.ParsedSummary(); len(summary) > 0 {
		b.WriteString(pterm.Yellow("Parsed:") + "\n")
		keys := make([]string, 0, len(summary))
		for k := range summary {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, summary[k])
		}
	}

	var shown []string
	for _, name := range importantHeaders {
		for k, v := range req.Headers {
			if strings.EqualFold(k, name) {
				shown = append(shown, fmt.Sprintf("  %s: %s", k, v))
				break
			}
		}
	}
	if len(shown) > 0 {
		b.WriteString(pterm.Yellow("Headers:") + "\n")
		b.WriteString(strings.Join(shown, "\n") + "\n")
	}

	if body := renderBody(req.Body); body != "" {
		b.WriteString(pterm.Yellow("Body:") + "\n")
		b.WriteString(body + "\n")
	}

	b.WriteString(pterm.Gray(strings.Repeat("─", 60)) + "\n")
	_, _ = io.WriteString(c.out, b.String())
}

func renderBody(body capture.Payload) string {
	switch v := body.(type) {
	case capture.StructuredPayload:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", map[string]any(v))
		}
		return string(data)
	case capture.RawPayload:
		runes := []rune(string(v))
		if len(runes) > rawPreviewLimit {
			return string(runes[:rawPreviewLimit])
		}
		return string(v)
	}
	return ""
}
