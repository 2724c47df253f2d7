package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal serializes r deterministically. Semantically identical records
// produce byte-identical output. r itself is not modified.
func Marshal(r *Record) ([]byte, error) {
	out := *r
	out.Threads = append([]Thread(nil), r.Threads...)
	if out.Threads == nil {
		out.Threads = []Thread{}
	}
	sortThreads(out.Threads)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a record. Unknown fields are rejected; structural
// validation is left to Validate.
func Unmarshal(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var r Record
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parsing record: trailing data after record")
	}
	if r.Threads == nil {
		r.Threads = []Thread{}
	}
	return &r, nil
}
