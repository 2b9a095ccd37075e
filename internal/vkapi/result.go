// SPDX-License-Identifier: AGPL-3.0-only
package vkapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PostOutcome is the result of one message on one wall: either a post id or
// an error. Both may be absent in a malformed answer.
type PostOutcome struct {
	PostID json.Number     `json:"post_id,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

func (o PostOutcome) Succeeded() bool {
	return o.PostID != "" && o.PostID != "0"
}

// ErrorMessage returns error.error_msg, or the error itself when the backend
// sent a bare string.
func (o PostOutcome) ErrorMessage() string {
	if len(o.Error) == 0 {
		return ""
	}

	var obj struct {
		ErrorMsg string `json:"error_msg"`
	}
	if err := json.Unmarshal(o.Error, &obj); err == nil {
		return obj.ErrorMsg
	}

	var s string
	if err := json.Unmarshal(o.Error, &s); err == nil {
		return s
	}
	return ""
}

// DestinationOutcomes holds the outcomes for one wall, aligned with the order
// of the submitted messages.
type DestinationOutcomes struct {
	DestinationID string
	Outcomes      []PostOutcome
}

// WallPostResult keeps destinations in the order the backend listed them.
type WallPostResult struct {
	Destinations []DestinationOutcomes
}

func (r *WallPostResult) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	destinations, err := decodeOrderedOutcomes(envelope.Message)
	if err != nil {
		return err
	}
	r.Destinations = destinations
	return nil
}

func decodeOrderedOutcomes(data json.RawMessage) ([]DestinationOutcomes, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object of destinations, got %v", tok)
	}

	var out []DestinationOutcomes
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected destination key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}

		out = append(out, DestinationOutcomes{
			DestinationID: key,
			Outcomes:      decodeOutcomes(raw),
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeOutcomes never fails: anything that is not a recognisable outcome
// becomes an empty one, so it still shows up in the report.
func decodeOutcomes(raw json.RawMessage) []PostOutcome {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []PostOutcome{{}}
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return []PostOutcome{{}}
		}
		outcomes := make([]PostOutcome, 0, len(items))
		for _, item := range items {
			outcomes = append(outcomes, decodeOutcome(item))
		}
		return outcomes
	case '{':
		return []PostOutcome{decodeOutcome(trimmed)}
	default:
		return []PostOutcome{{}}
	}
}

// decodeOutcome reads post_id and error separately, so a malformed post_id
// does not hide the error text next to it.
func decodeOutcome(raw json.RawMessage) PostOutcome {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return PostOutcome{}
	}

	var o PostOutcome
	if v, ok := fields["post_id"]; ok {
		var id json.Number
		if err := json.Unmarshal(v, &id); err == nil {
			o.PostID = id
		}
	}
	if v, ok := fields["error"]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		o.Error = v
	}
	return o
}
