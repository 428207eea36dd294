package handlers

import (
	"net/http"
	"strconv"
	"time"

	"webhookrecv/internal/capture"
	"webhookrecv/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

const (
	defaultHistoryLimit = 50
	statusRecentLimit   = 10
)

// HistoryHandler serves the admin routes over the capture history
type HistoryHandler struct {
	store    *capture.Store
	metrics  *metrics.Recorder
	savePath string
	logger   *pterm.Logger
}

// NewHistoryHandler creates a new history handler. savePath may be empty.
func NewHistoryHandler(store *capture.Store, recorder *metrics.Recorder, savePath string, logger *pterm.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:    store,
		metrics:  recorder,
		savePath: savePath,
		logger:   logger,
	}
}

// historyEntry is the list view of a captured request
type historyEntry struct {
	ID         string         `json:"id"`
	Timestamp  string         `json:"timestamp"`
	Method     string         `json:"method"`
	Path       string         `json:"path"`
	SourceIP   string         `json:"source_ip"`
	ParserType *string        `json:"parser_type"`
	ParsedData map[string]any `json:"parsed_data"`
}

func newHistoryEntry(req capture.CapturedRequest) historyEntry {
	entry := historyEntry{
		ID:         req.ID,
		Timestamp:  req.Timestamp.Format(time.RFC3339Nano),
		Method:     req.Method,
		Path:       req.Path,
		SourceIP:   req.SourceAddress,
		ParsedData: req.ParsedSummary(),
	}
	if provider := req.ProviderType(); provider != "" {
		entry.ParserType = &provider
	}
	return entry
}

// GetStatus returns the server status and the most recent requests
func (h *HistoryHandler) GetStatus(c *gin.Context) {
	recent := h.store.List(statusRecentLimit)
	items := make([]gin.H, 0, len(recent))
	for _, req := range recent {
		items = append(items, gin.H{
			"id":        req.ID,
			"timestamp": req.Timestamp.Format(time.RFC3339Nano),
			"method":    req.Method,
			"path":      req.Path,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "running",
		"total_requests":  h.store.Len(),
		"max_history":     h.store.MaxHistory(),
		"recent_requests": items,
	})
}

// ListHistory returns up to ?limit requests, newest first (0 = all)
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil {
			limit = max(l, 0)
		}
	}

	records := h.store.List(limit)
	entries := make([]historyEntry, 0, len(records))
	for _, req := range records {
		entries = append(entries, newHistoryEntry(req))
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    h.store.Len(),
		"returned": len(entries),
		"requests": entries,
	})
}

// GetRequest returns one full record
func (h *HistoryHandler) GetRequest(c *gin.Context) {
	req, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	c.JSON(http.StatusOK, req)
}

// ClearHistory removes every record
func (h *HistoryHandler) ClearHistory(c *gin.Context) {
	count := h.store.Clear()
	h.metrics.SetHistorySize(0)
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "count": count})
}

// Export streams the snapshot document as a download
func (h *HistoryHandler) Export(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", "attachment; filename=webhooks_export.json")
	c.Status(http.StatusOK)

	err := h.store.WriteSnapshot(c.Writer)
	h.metrics.ObserveSnapshot("export", err)
	if err != nil {
		h.logger.WithCaller().Error("Failed to export snapshot", h.logger.Args("error", err))
	}
}

// SaveSnapshot writes the snapshot to the configured save path
func (h *HistoryHandler) SaveSnapshot(c *gin.Context) {
	if h.savePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no save path configured"})
		return
	}

	err := h.store.SaveToFile(h.savePath)
	h.metrics.ObserveSnapshot("save", err)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "saved",
		"path":   h.savePath,
		"count":  h.store.Len(),
	})
}
