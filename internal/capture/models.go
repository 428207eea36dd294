package capture

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Payload is the body of a captured request: either StructuredPayload or RawPayload.
type Payload interface {
	isPayload()
}

// StructuredPayload is a body that decoded to a JSON object
type StructuredPayload map[string]any

// RawPayload is a body kept as plain text
type RawPayload string

func (StructuredPayload) isPayload() {}
func (RawPayload) isPayload()        {}

// Classification is the provider tag and parsed summary attached after capture.
// Both travel together; a record either has a Classification or it does not.
type Classification struct {
	Provider string
	Summary  map[string]any
}

// CapturedRequest represents a single received webhook request
type CapturedRequest struct {
	ID            string
	Timestamp     time.Time
	Method        string
	Path          string
	Headers       map[string]string
	QueryParams   map[string]string
	Body          Payload
	SourceAddress string

	// Set once by Store.Classify, nil until detection succeeds
	Classification *Classification
}

// ProviderType returns the classified provider or "" when unclassified
func (r *CapturedRequest) ProviderType() string {
	if r.Classification == nil {
		return ""
	}
	return r.Classification.Provider
}

// ParsedSummary returns the parsed provider summary or nil when unclassified
func (r *CapturedRequest) ParsedSummary() map[string]any {
	if r.Classification == nil {
		return nil
	}
	return r.Classification.Summary
}

// requestRecord is the JSON shape of a CapturedRequest in snapshots and API responses
type requestRecord struct {
	ID          string            `json:"id"`
	Timestamp   string            `json:"timestamp"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Headers     map[string]string `json:"headers"`
	QueryParams map[string]string `json:"query_params"`
	Body        Payload           `json:"body"`
	SourceIP    string            `json:"source_ip"`
	ParserType  *string           `json:"parser_type"`
	ParsedData  map[string]any    `json:"parsed_data"`
}

// MarshalJSON renders the record with an ISO-8601 timestamp and nullable classification fields
func (r CapturedRequest) MarshalJSON() ([]byte, error) {
	rec := requestRecord{
		ID:          r.ID,
		Timestamp:   r.Timestamp.Format(time.RFC3339Nano),
		Method:      r.Method,
		Path:        r.Path,
		Headers:     r.Headers,
		QueryParams: r.QueryParams,
		Body:        r.Body,
		SourceIP:    r.SourceAddress,
	}
	if rec.Headers == nil {
		rec.Headers = map[string]string{}
	}
	if rec.QueryParams == nil {
		rec.QueryParams = map[string]string{}
	}
	if r.Classification != nil {
		provider := r.Classification.Provider
		rec.ParserType = &provider
		rec.ParsedData = r.Classification.Summary
	}
	return json.Marshal(rec)
}

// DecodePayload builds the payload of an inbound request.
// JSON objects sent with a JSON content type become StructuredPayload;
// anything else, including JSON arrays and invalid JSON, is kept as raw text.
func DecodePayload(contentType string, raw []byte) Payload {
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		return RawPayload(raw)
	}

	obj, err := decodeObject(raw)
	if err != nil {
		return RawPayload(raw)
	}
	return StructuredPayload(obj)
}

// decodeObject decodes a single JSON object, keeping numbers exact
func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNotObject
	}
	if dec.More() {
		return nil, errTrailingData
	}
	return obj, nil
}
