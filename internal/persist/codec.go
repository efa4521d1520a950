// Package persist implements the session storage port for each supported
// backend. Every backend stores the same JSON document:
//
//	{ "userStories": [...], "bpmnXml": "..."|null, "elementLinks": {...} }
//
// so a session can move between backends by export/import.
package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HendryAvila/storymap/internal/linkage"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// ErrEmptyBlob is returned by Decode for a zero-length document.
var ErrEmptyBlob = errors.New("empty session document")

// Encode serializes st in the persisted layout.
func Encode(st *linkage.State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}
	return data, nil
}

// EncodeIndent serializes st for humans (session export).
func EncodeIndent(st *linkage.State) ([]byte, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}
	return data, nil
}

// Decode parses a persisted session document. The result may still break
// link invariants; callers repair it (linkage.Repair).
func Decode(data []byte) (*linkage.State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyBlob
	}
	var st linkage.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	return &st, nil
}
