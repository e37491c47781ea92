// Package reduction computes wire-size savings for a record.
//
// Reduce serializes a record, strips insignificant whitespace and reports the
// size before and after. The returned payload is the record re-parsed from its
// serialized form; its information content is never altered.
package reduction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type Stats struct {
	OriginalSizeBytes int     `json:"originalSizeBytes"`
	ReducedSizeBytes  int     `json:"reducedSizeBytes"`
	PercentSaved      float64 `json:"percentSaved"`
}

// Rate renders PercentSaved the way it is stored on order metadata, e.g. "23.4%".
func (s Stats) Rate() string {
	return strconv.FormatFloat(s.PercentSaved, 'f', 1, 64) + "%"
}

// Reduce measures the record's human-readable encoding (two-space indented JSON)
// against its compact encoding. A record that encodes to nothing saves 0%.
func Reduce(record any) (map[string]any, Stats, error) {
	readable, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to serialize record: %w", err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, readable); err != nil {
		return nil, Stats{}, fmt.Errorf("failed to compact record: %w", err)
	}

	payload, err := parse(compact.Bytes())
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{
		OriginalSizeBytes: len(readable),
		ReducedSizeBytes:  compact.Len(),
	}
	stats.PercentSaved = percentSaved(stats.OriginalSizeBytes, stats.ReducedSizeBytes)
	return payload, stats, nil
}

func parse(data []byte) (map[string]any, error) {
	if bytes.Equal(data, []byte("null")) {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("record must encode to a JSON object: %w", err)
	}
	if payload == nil {
		return map[string]any{}, nil
	}
	return normalize(payload).(map[string]any), nil
}

// maxExactFloat is the largest magnitude below which every integer has an
// exact float64 representation.
const maxExactFloat = 1 << 53

// normalize replaces json.Number with float64, or with int64 for integers a
// float64 would round.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			val[k] = normalize(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = normalize(inner)
		}
		return val
	case json.Number:
		if n, err := val.Int64(); err == nil && (n > maxExactFloat || n < -maxExactFloat) {
			return n
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	default:
		return v
	}
}

func percentSaved(original, reduced int) float64 {
	if original == 0 {
		return 0
	}
	saved := float64(original-reduced) / float64(original) * 100
	return math.Round(saved*10) / 10
}
