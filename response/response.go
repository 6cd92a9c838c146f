// Package response validates and normalizes simulation service payloads.
//
// The service schema drifted across versions: field names changed, optional
// sub-scores came and went, and queue lengths were sometimes decorated
// strings. Normalization happens once here so the rest of the engine only
// sees types.LogEntry values with explicit zero defaults.
//
// Failure policy:
//   - Unparsable body, or a missing / non-array track sequence: the whole
//     response is rejected with types.ErrMalformedResponse.
//   - A single unusable row (null, not an object, no positive cycle, no phase,
//     negative or non-finite loss): the row is dropped and counted in Stats.
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pithecene-io/crossflow/types"
)

// Track keys in priority order. The first key present wins.
var (
	adaptiveKeys = []string{"ai_logs", "adaptive_logs"}
	fixedKeys    = []string{"fx_logs", "fixed_logs"}
)

const errorKey = "error"

// Stats counts rows dropped during normalization, per track.
type Stats struct {
	AdaptiveDropped int `json:"adaptive_dropped"`
	FixedDropped    int `json:"fixed_dropped"`
}

// Dropped returns the total number of dropped rows.
func (s Stats) Dropped() int {
	return s.AdaptiveDropped + s.FixedDropped
}

// Envelope is a parsed but not yet normalized response body.
type Envelope struct {
	fields map[string]json.RawMessage
}

// Parse decodes the top-level JSON object. Anything that is not a JSON
// object fails with types.ErrMalformedResponse.
func Parse(body []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, types.NewMalformedError(fmt.Errorf("decode body: %w", err))
	}
	if fields == nil {
		return nil, types.NewMalformedError(errors.New("body is null"))
	}
	return &Envelope{fields: fields}, nil
}

// ServiceError reports the service-supplied error indicator.
// A string is returned verbatim; true or an object without a message yields
// an empty message (callers substitute a generic one). null, false, 0 and
// "" are not errors.
func (e *Envelope) ServiceError() (string, bool) {
	raw, ok := e.fields[errorKey]
	if !ok {
		return "", false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", true
	}

	switch val := v.(type) {
	case nil:
		return "", false
	case bool:
		return "", val
	case string:
		return val, val != ""
	case float64:
		if val == 0 {
			return "", false
		}
		return fmt.Sprint(val), true
	case map[string]any:
		if msg, ok := val["message"].(string); ok {
			return msg, true
		}
		return "", true
	default:
		return fmt.Sprint(val), true
	}
}

// Normalize converts the envelope into a RunResult.
func (e *Envelope) Normalize() (*types.RunResult, Stats, error) {
	var stats Stats

	adaptiveRaw, err := e.sequence(types.TrackAdaptive, adaptiveKeys)
	if err != nil {
		return nil, stats, err
	}
	fixedRaw, err := e.sequence(types.TrackFixed, fixedKeys)
	if err != nil {
		return nil, stats, err
	}

	result := &types.RunResult{}
	result.Adaptive, stats.AdaptiveDropped = normalizeRows(adaptiveRaw)
	result.Fixed, stats.FixedDropped = normalizeRows(fixedRaw)

	return result, stats, nil
}

// Normalize parses and normalizes a raw body in one step. It does not
// interpret the error field; see Envelope.ServiceError.
func Normalize(body []byte) (*types.RunResult, Stats, error) {
	env, err := Parse(body)
	if err != nil {
		return nil, Stats{}, err
	}
	return env.Normalize()
}

// sequence returns the raw rows of a track, or a malformed error when the key
// is absent or does not hold an array.
func (e *Envelope) sequence(track types.Track, keys []string) ([]json.RawMessage, error) {
	for _, key := range keys {
		raw, ok := e.fields[key]
		if !ok {
			continue
		}
		if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
			return nil, types.NewMalformedError(fmt.Errorf("%s sequence %q is not an array", track, key))
		}
		var rows []json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, types.NewMalformedError(fmt.Errorf("decode %s sequence: %w", track, err))
		}
		return rows, nil
	}
	return nil, types.NewMalformedError(fmt.Errorf("missing %s sequence (expected one of %v)", track, keys))
}

// normalizeRows converts each row, dropping unusable ones. Order is preserved.
func normalizeRows(rows []json.RawMessage) ([]types.LogEntry, int) {
	entries := make([]types.LogEntry, 0, len(rows))
	dropped := 0
	for _, raw := range rows {
		entry, ok := normalizeRow(raw)
		if !ok {
			dropped++
			continue
		}
		entries = append(entries, entry)
	}
	return entries, dropped
}
