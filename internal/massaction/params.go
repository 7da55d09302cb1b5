package massaction

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ParamsVersion is bumped when the selection encoding changes shape. A worker
// refuses records written by a newer encoder.
const ParamsVersion = 1

// Selection kinds.
const (
	KindIDs    = "ids"
	KindFilter = "filter"
)

// Params encodes which records a bulk action applies to: either an explicit
// id list or a search filter ("select all matching"). The encoding is a
// versioned tagged union so the queued worker can decode it independently of
// the process that enqueued it.
type Params struct {
	Version int             `json:"version"`
	Kind    string          `json:"kind"`
	IDs     []string        `json:"ids,omitempty"`
	Filter  json.RawMessage `json:"filter,omitempty"`
}

// IDsParams selects an explicit id list.
func IDsParams(ids ...string) Params {
	return Params{Version: ParamsVersion, Kind: KindIDs, IDs: ids}
}

// FilterParams selects every record matching the filter expression.
func FilterParams(filter json.RawMessage) Params {
	return Params{Version: ParamsVersion, Kind: KindFilter, Filter: filter}
}

// IsFilter reports whether the selection was a filter rather than explicit ids.
func (p Params) IsFilter() bool { return p.Kind == KindFilter }

// Validate checks structural soundness before the params are acted on.
func (p Params) Validate() error {
	if p.Version != ParamsVersion {
		return fmt.Errorf("unsupported params version %d", p.Version)
	}
	switch p.Kind {
	case KindIDs:
		if len(p.IDs) == 0 {
			return errors.New("ids selection requires at least one id")
		}
	case KindFilter:
		// an absent filter means "select all"
	default:
		return fmt.Errorf("unknown selection kind %q", p.Kind)
	}
	return nil
}

// Encode serializes the params for storage on a queued record.
func (p Params) Encode() (string, error) {
	out, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}
	return string(out), nil
}

// DecodeParams reads stored params back, validating version and kind.
func DecodeParams(raw string) (Params, error) {
	var p Params
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Params{}, fmt.Errorf("failed to decode params: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
