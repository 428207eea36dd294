package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

var (
	// ErrMalformedSnapshot is returned when a snapshot document cannot be restored
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	errNotObject    = errors.New("not a JSON object")
	errTrailingData = errors.New("trailing data after JSON object")
)

// requiredFields must be present on every restored record
var requiredFields = []string{"id", "timestamp", "method", "path", "headers", "query_params", "body", "source_ip"}

// Snapshot is the flat document written by WriteSnapshot
type Snapshot struct {
	ExportedAt    string            `json:"exported_at"`
	TotalRequests int               `json:"total_requests"`
	Requests      []CapturedRequest `json:"requests"`
}

// WriteSnapshot writes the full history, in insertion order, to w
func (s *Store) WriteSnapshot(w io.Writer) error {
	records := s.snapshotRecords()
	doc := Snapshot{
		ExportedAt:    s.now().Format(time.RFC3339Nano),
		TotalRequests: len(records),
		Requests:      records,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// SaveToFile writes a snapshot to path, replacing any existing file
func (s *Store) SaveToFile(path string) error {
	var buf bytes.Buffer
	if err := s.WriteSnapshot(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		s.logger.WithCaller().Error("Failed to write snapshot", s.logger.Args("path", path, "error", err))
		return err
	}

	s.logger.Info("Saved history snapshot", s.logger.Args("path", path, "requests", s.Len()))
	return nil
}

// ReadSnapshot restores records from a snapshot document and returns how many were appended.
// The document is validated completely before anything is appended.
func (s *Store) ReadSnapshot(r io.Reader) (int, error) {
	var doc *struct {
		Requests []map[string]json.RawMessage `json:"requests"`
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if doc == nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedSnapshot, errNotObject)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return 0, fmt.Errorf("%w: %v", ErrMalformedSnapshot, errTrailingData)
	}

	records := make([]*CapturedRequest, 0, len(doc.Requests))
	for i, raw := range doc.Requests {
		req, err := decodeRecord(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: request %d: %v", ErrMalformedSnapshot, i, err)
		}
		records = append(records, req)
	}

	s.appendRecords(records)
	return len(records), nil
}

// LoadFromFile restores records from the snapshot file at path
func (s *Store) LoadFromFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count, err := s.ReadSnapshot(f)
	if err != nil {
		s.logger.WithCaller().Error("Failed to load snapshot", s.logger.Args("path", path, "error", err))
		return 0, err
	}

	s.logger.Info("Loaded history snapshot", s.logger.Args("path", path, "requests", count))
	return count, nil
}

// decodeRecord rebuilds a CapturedRequest from one snapshot entry
func decodeRecord(raw map[string]json.RawMessage) (*CapturedRequest, error) {
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return nil, fmt.Errorf("missing field %q", field)
		}
	}

	req := &CapturedRequest{}
	var timestamp string
	strFields := map[string]*string{
		"id":        &req.ID,
		"timestamp": &timestamp,
		"method":    &req.Method,
		"path":      &req.Path,
		"source_ip": &req.SourceAddress,
	}
	for field, dst := range strFields {
		if err := unmarshalField(raw[field], dst); err != nil {
			return nil, fmt.Errorf("field %q: %v", field, err)
		}
	}

	ts, err := parseTimestamp(timestamp)
	if err != nil {
		return nil, fmt.Errorf("field \"timestamp\": %v", err)
	}
	req.Timestamp = ts

	if err := unmarshalField(raw["headers"], &req.Headers); err != nil {
		return nil, fmt.Errorf("field \"headers\": %v", err)
	}
	if err := unmarshalField(raw["query_params"], &req.QueryParams); err != nil {
		return nil, fmt.Errorf("field \"query_params\": %v", err)
	}

	body, err := decodeBody(raw["body"])
	if err != nil {
		return nil, fmt.Errorf("field \"body\": %v", err)
	}
	req.Body = body

	var parserType *string
	if v, ok := raw["parser_type"]; ok {
		if err := unmarshalField(v, &parserType); err != nil {
			return nil, fmt.Errorf("field \"parser_type\": %v", err)
		}
	}
	var parsedData map[string]any
	if v, ok := raw["parsed_data"]; ok {
		if err := unmarshalField(v, &parsedData); err != nil {
			return nil, fmt.Errorf("field \"parsed_data\": %v", err)
		}
	}
	// classification is only kept when both halves are present
	if parserType != nil && *parserType != "" && parsedData != nil {
		req.Classification = &Classification{Provider: *parserType, Summary: parsedData}
	}

	return req, nil
}

func unmarshalField(raw json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

// decodeBody restores a payload: objects are structured, strings and null are raw
func decodeBody(raw json.RawMessage) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		return RawPayload(""), nil
	case len(trimmed) > 0 && trimmed[0] == '{':
		obj, err := decodeObject(trimmed)
		if err != nil {
			return nil, err
		}
		return StructuredPayload(obj), nil
	default:
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, errors.New("body must be an object or a string")
		}
		return RawPayload(text), nil
	}
}

// timestampLayouts covers RFC 3339 as written here
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

// localTimestampLayouts are zone-less ISO-8601 from older exports, written in local time
var localTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	for _, layout := range localTimestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}
