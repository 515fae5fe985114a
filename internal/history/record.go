package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeFormat is the layout used for persisted timestamps (ISO-8601, UTC, millis).
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DocumentKey is the key under which the entry list is persisted.
const DocumentKey = "clipboardHistory"

// Record is the serialised form of an Entry, shared by the persisted
// document and the RPC surface.
type Record struct {
	ID        string `json:"id"`
	Type      Kind   `json:"type"`
	Content   string `json:"content"`
	Hash      string `json:"hash,omitempty"`
	Timestamp string `json:"timestamp"`
	Locked    bool   `json:"locked"`
}

// Document is the root structure of the persisted history.
type Document struct {
	Entries []Record `json:"clipboardHistory"`
}

// ToRecord converts e to its serialised form.
func ToRecord(e Entry) Record {
	return Record{
		ID:        e.ID,
		Type:      e.Kind,
		Content:   e.Content(),
		Hash:      e.Hash,
		Timestamp: e.RecordedAt.UTC().Format(TimeFormat),
		Locked:    e.Locked,
	}
}

// FromRecord converts r back into an Entry. Records without an ID are given
// a fresh one.
func FromRecord(r Record) (Entry, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return Entry{}, fmt.Errorf("record %q: timestamp: %w", r.ID, err)
	}
	e := Entry{ID: r.ID, Kind: r.Type, Hash: r.Hash, RecordedAt: ts, Locked: r.Locked}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	switch r.Type {
	case KindText:
		e.Text = r.Content
	case KindImage:
		e.File = r.Content
	default:
		return Entry{}, fmt.Errorf("record %q: unknown type %q", r.ID, r.Type)
	}
	return e, nil
}

// ToRecords converts a slice of entries, preserving order.
func ToRecords(entries []Entry) []Record {
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = ToRecord(e)
	}
	return out
}

// FromRecords converts a slice of records, preserving order.
func FromRecords(records []Record) ([]Entry, error) {
	out := make([]Entry, 0, len(records))
	for _, r := range records {
		e, err := FromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// EncodeDocument serialises entries as the persisted JSON document.
func EncodeDocument(entries []Entry) ([]byte, error) {
	data, err := json.MarshalIndent(Document{Entries: ToRecords(entries)}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a persisted JSON document. Empty input yields no entries.
func DecodeDocument(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("history document corrupted (run 'keepclip clear' or remove it to reset): %w", err)
	}
	return FromRecords(doc.Entries)
}
