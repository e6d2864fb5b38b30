package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// Header is the payload of the START record that opens every trace.
//
// Replay reads it back before the first decision: the seed restores the
// PRNG and the format version guards against traces the engine can no
// longer reproduce.
type Header struct {
	FormatVersion int    `json:"format_version"`
	EngineVersion string `json:"engine_version"`
	Seed          uint64 `json:"seed"`
	Strategy      string `json:"strategy"`
	RunID         string `json:"run_id"`
	ConfigHash    string `json:"config_hash,omitempty"`
}

// Payload encodes h as canonical JSON.
func (h Header) Payload() ([]byte, error) {
	m := map[string]any{
		"format_version": h.FormatVersion,
		"engine_version": h.EngineVersion,
		"seed":           h.Seed,
		"strategy":       h.Strategy,
		"run_id":         h.RunID,
	}
	if h.ConfigHash != "" {
		m["config_hash"] = h.ConfigHash
	}
	return ir.MarshalCanonical(m)
}

// ParseHeader decodes a START payload.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&h); err != nil {
		return Header{}, fmt.Errorf("parse trace header: %w", err)
	}
	return h, nil
}

// ReadHeader returns the START header of t and, when present, the decoded
// CONFIG payload. The cursor of t is rewound afterwards.
func ReadHeader(t trace.Trace) (Header, map[string]any, error) {
	t.Rewind()
	defer t.Rewind()

	start := t.Next(trace.KindStart)
	if start == nil {
		return Header{}, nil, fmt.Errorf("read trace header: no START record")
	}
	h, err := ParseHeader(start.Data)
	if err != nil {
		return Header{}, nil, err
	}
	t.Advance()

	cfg := t.Next(trace.KindConfig)
	if cfg == nil {
		return h, nil, nil
	}
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(cfg.Data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return Header{}, nil, fmt.Errorf("read trace config: %w", err)
	}
	return h, m, nil
}
