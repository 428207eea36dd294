package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"webhookrecv/internal/capture"
	"webhookrecv/internal/ingestion"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// WebhookHandler captures every request that is not an admin route
type WebhookHandler struct {
	receiver     *ingestion.Receiver
	maxBodyBytes int64
	logger       *pterm.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(receiver *ingestion.Receiver, maxBodyBytes int64, logger *pterm.Logger) *WebhookHandler {
	return &WebhookHandler{
		receiver:     receiver,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// Capture records the request and acknowledges it
func (h *WebhookHandler) Capture(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Rejected oversized request body",
				h.logger.Args("path", c.Request.URL.Path, "limit", h.maxBodyBytes, "client_ip", c.ClientIP()))
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		h.logger.Debug("Failed to read request body", h.logger.Args("error", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	req := h.receiver.Receive(ingestion.Inbound{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Headers:       flattenHeaders(c.Request),
		Query:         flattenQuery(c.Request),
		Body:          capture.DecodePayload(c.ContentType(), raw),
		SourceAddress: c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"status":    "received",
		"id":        req.ID,
		"timestamp": req.Timestamp.Format(time.RFC3339Nano),
	})
}

// flattenHeaders joins repeated headers with ", " and adds Host, which net/http strips
func flattenHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string, len(r.Header)+1)
	for name, values := range r.Header {
		headers[name] = strings.Join(values, ", ")
	}
	if r.Host != "" {
		headers["Host"] = r.Host
	}
	return headers
}

// flattenQuery keeps the last value of repeated parameters
func flattenQuery(r *http.Request) map[string]string {
	values := r.URL.Query()
	query := make(map[string]string, len(values))
	for name, v := range values {
		if len(v) > 0 {
			query[name] = v[len(v)-1]
		}
	}
	return query
}
