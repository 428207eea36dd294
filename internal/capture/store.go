package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// DefaultMaxHistory is used when a store is created with a non-positive limit
const DefaultMaxHistory = 100

// Store keeps a bounded, insertion-ordered history of captured requests.
// Every mutation and read is serialized through mu.
type Store struct {
	mu         sync.RWMutex
	history    []*CapturedRequest
	counter    int
	maxHistory int
	logger     *pterm.Logger
	now        func() time.Time
}

// NewStore creates a new history store
func NewStore(maxHistory int, logger *pterm.Logger) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		history:    make([]*CapturedRequest, 0, maxHistory),
		maxHistory: maxHistory,
		logger:     logger,
		now:        time.Now,
	}
}

// MaxHistory returns the configured history bound
func (s *Store) MaxHistory() int {
	return s.maxHistory
}

// Len returns the number of records currently held
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Capture records a new request and returns a handle to the stored record.
// The oldest records are evicted once the history exceeds its bound.
func (s *Store) Capture(method, path string, headers, queryParams map[string]string, body Payload, sourceAddress string) *CapturedRequest {
	s.mu.Lock()

	s.counter++
	req := &CapturedRequest{
		ID:            fmt.Sprintf("req_%05d", s.counter),
		Timestamp:     s.now(),
		Method:        method,
		Path:          path,
		Headers:       headers,
		QueryParams:   queryParams,
		Body:          body,
		SourceAddress: sourceAddress,
	}
	s.history = append(s.history, req)

	evicted := 0
	if len(s.history) > s.maxHistory {
		evicted = len(s.history) - s.maxHistory
		// copy so the evicted head can be collected
		trimmed := make([]*CapturedRequest, s.maxHistory, s.maxHistory+1)
		copy(trimmed, s.history[evicted:])
		s.history = trimmed
	}
	s.mu.Unlock()

	s.logger.Info("Received request",
		s.logger.Args("id", req.ID, "method", method, "path", path, "source", sourceAddress))
	if evicted > 0 {
		s.logger.Trace("Trimmed history", s.logger.Args("evicted", evicted, "max_history", s.maxHistory))
	}
	return req
}

// Classify attaches the provider classification to a record returned by Capture
// and returns a copy of the updated record
func (s *Store) Classify(req *CapturedRequest, cls Classification) CapturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.Classification = &cls
	return *req
}

// List returns copies of the history, most recent first.
// A non-positive limit returns everything.
func (s *Store) List(limit int) []CapturedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]CapturedRequest, 0, n)
	for i := len(s.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *s.history[i])
	}
	return out
}

// Get returns the record with the given ID
func (s *Store) Get(id string) (CapturedRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, req := range s.history {
		if req.ID == id {
			return *req, true
		}
	}
	s.logger.Trace("Request not found", s.logger.Args("id", id))
	return CapturedRequest{}, false
}

// Clear removes every record, resets the ID counter and returns how many were removed
func (s *Store) Clear() int {
	s.mu.Lock()
	count := len(s.history)
	s.history = make([]*CapturedRequest, 0, s.maxHistory)
	s.counter = 0
	s.mu.Unlock()

	s.logger.Info("Cleared history", s.logger.Args("count", count))
	return count
}

// snapshotRecords returns a copy of the history in insertion order
func (s *Store) snapshotRecords() []CapturedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CapturedRequest, len(s.history))
	for i, req := range s.history {
		out[i] = *req
	}
	return out
}

// appendRecords adds restored records to the tail without trimming or touching the counter
func (s *Store) appendRecords(records []*CapturedRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, records...)
}
