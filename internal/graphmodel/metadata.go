package graphmodel

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is an optional provenance bag (source URL, ingestion
// timestamp, ...) stored as JSONB alongside Article/Author rows.
type Metadata map[string]interface{}

// Value implements driver.Valuer for database storage.
func (m Metadata) Value() (driver.Value, error) {
	return m.Marshal()
}

// Scan implements sql.Scanner for database retrieval.
func (m *Metadata) Scan(value interface{}) error {
	return m.Unmarshal(value)
}

// Marshal converts Metadata to JSON bytes.
func (m Metadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal converts JSON bytes (or an already-decoded Metadata value)
// into Metadata.
func (m *Metadata) Unmarshal(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}

	if v, ok := value.(Metadata); ok {
		*m = v
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("metadata scan: unsupported type %T", value)
	}
	if len(b) == 0 {
		*m = Metadata{}
		return nil
	}

	return json.Unmarshal(b, m)
}
