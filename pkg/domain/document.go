package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Document is the envelope used by remote document stores: the snapshot
// under "schools", the write time and the writer's origin identifier.
type Document struct {
	Schools     Registry  `json:"schools"`
	LastUpdated time.Time `json:"lastUpdated"`
	Origin      string    `json:"origin,omitempty"`
}

// EncodeDocument serializes a registry inside a Document envelope.
func EncodeDocument(reg Registry, origin string, now time.Time) ([]byte, error) {
	return json.Marshal(Document{Schools: reg, LastUpdated: now.UTC(), Origin: origin})
}

// DecodeDocument parses a Document envelope. The boolean is false when
// "schools" is missing or null: such a document carries no snapshot.
func DecodeDocument(data []byte) (Document, bool, error) {
	var raw struct {
		Schools     json.RawMessage `json:"schools"`
		LastUpdated time.Time       `json:"lastUpdated"`
		Origin      string          `json:"origin"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, false, fmt.Errorf("decode document: %w", err)
	}
	doc := Document{LastUpdated: raw.LastUpdated, Origin: raw.Origin}
	if len(raw.Schools) == 0 || bytes.Equal(raw.Schools, []byte("null")) {
		return doc, false, nil
	}
	if err := json.Unmarshal(raw.Schools, &doc.Schools); err != nil {
		return Document{}, false, fmt.Errorf("decode document: %w", err)
	}
	return doc, true, nil
}
