package ingestion

import (
	"sync"
	"time"

	"webhookrecv/internal/capture"
	"webhookrecv/internal/parser/webhook"
	"webhookrecv/internal/realtime"

	"github.com/pterm/pterm"
)

// Inbound is a request as seen by the ingress adapter, already flattened
type Inbound struct {
	Method        string
	Path          string
	Headers       map[string]string
	Query         map[string]string
	Body          capture.Payload
	SourceAddress string
}

// Display shows a captured request to the operator
type Display interface {
	Show(req capture.CapturedRequest)
}

// MetricsObserver records capture metrics
type MetricsObserver interface {
	ObserveCapture(method, provider string, historySize int)
}

// Options holds the optional collaborators of a Receiver; nil fields are skipped
type Options struct {
	ForceProvider webhook.Provider
	Display       Display
	Metrics       MetricsObserver
	Feed          *realtime.Feed
}

// Receiver runs every inbound request through capture, classification and fan-out
type Receiver struct {
	store  *capture.Store
	opts   Options
	logger *pterm.Logger

	// Statistics
	totalReceived   int64
	totalClassified int64
	startTime       time.Time
	statsMu         sync.Mutex
}

// NewReceiver creates a new receiver bound to store
func NewReceiver(store *capture.Store, opts Options, logger *pterm.Logger) *Receiver {
	if opts.ForceProvider != "" {
		logger.Info("Provider detection disabled, forcing parser",
			logger.Args("parser", opts.ForceProvider.String()))
	}
	return &Receiver{
		store:     store,
		opts:      opts,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Receive captures an inbound request and returns a copy of the final record
func (r *Receiver) Receive(in Inbound) capture.CapturedRequest {
	stored := r.store.Capture(in.Method, in.Path, in.Headers, in.Query, in.Body, in.SourceAddress)
	req := *stored

	provider, ok := r.opts.ForceProvider, r.opts.ForceProvider != ""
	if !ok {
		provider, ok = webhook.Detect(in.Headers, in.Body)
	}

	if ok {
		if summary := provider.Parse(in.Headers, in.Body); summary != nil {
			req = r.store.Classify(stored, capture.Classification{
				Provider: provider.String(),
				Summary:  summary,
			})
			r.logger.Debug("Request classified",
				r.logger.Args("id", req.ID, "parser", provider.String()))
		} else {
			r.logger.Debug("Parser produced no summary, leaving request unclassified",
				r.logger.Args("id", req.ID, "parser", provider.String()))
		}
	}

	r.statsMu.Lock()
	r.totalReceived++
	if req.Classification != nil {
		r.totalClassified++
	}
	r.statsMu.Unlock()

	if r.opts.Display != nil {
		r.opts.Display.Show(req)
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveCapture(req.Method, req.ProviderType(), r.store.Len())
	}
	if r.opts.Feed != nil {
		r.opts.Feed.Publish(realtime.NewEvent(req))
	}

	return req
}

// Store returns the history store the receiver writes to
func (r *Receiver) Store() *capture.Store {
	return r.store
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats() map[string]interface{} {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	uptime := time.Since(r.startTime)
	rate := float64(0)
	if uptime.Seconds() > 0 {
		rate = float64(r.totalReceived) / uptime.Seconds()
	}

	return map[string]interface{}{
		"total_received":   r.totalReceived,
		"total_classified": r.totalClassified,
		"uptime_seconds":   int64(uptime.Seconds()),
		"requests_per_sec": rate,
	}
}
