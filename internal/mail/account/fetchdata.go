package account

import (
	"encoding/json"
	"fmt"
)

// FetchData holds per-folder fetch cursors, keyed by folder name. For IMAP the
// cursor is the last fetched UID, for POP3 the last fetched UIDL. Stored as a
// JSON object so workers on other processes can pick up where a fetch left off.
type FetchData map[string]string

// ParseFetchData decodes the stored cursor blob. A nil or empty blob yields an
// empty, usable map.
func ParseFetchData(raw *string) (FetchData, error) {
	data := FetchData{}
	if raw == nil || *raw == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(*raw), &data); err != nil {
		return nil, fmt.Errorf("failed to decode fetch data: %w", err)
	}
	return data, nil
}

// Encode serializes the cursors for storage.
func (d FetchData) Encode() (string, error) {
	out, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode fetch data: %w", err)
	}
	return string(out), nil
}
