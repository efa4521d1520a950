// Package tools implements the MCP tool handlers that make up storymap's
// shell: stories, element links, diagram commands and session backup.
//
// Each tool follows the same pattern:
// - A struct with its dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Domain failures come back as tool errors tagged with their kind
// ("[validation] ...", "[busy] ..."), never as protocol errors.
package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/storymap/internal/apperr"
	"github.com/HendryAvila/storymap/internal/linkage"
	"github.com/mark3labs/mcp-go/mcp"
)

// Diagram is the read side of the diagram engine the tools display.
type Diagram interface {
	ListElements() []linkage.ElementRef
	GetElement(id string) (linkage.ElementRef, bool)
	IsHighlighted(elementID string) bool
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringSliceArg extracts a list of strings. It accepts a JSON array or a
// comma-separated string; blank entries are dropped. ok is false when the
// key is missing.
func stringSliceArg(req mcp.CallToolRequest, key string) (vals []string, ok bool) {
	raw, present := req.GetArguments()[key]
	if !present || raw == nil {
		return nil, false
	}

	vals = []string{}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, isStr := item.(string); isStr && strings.TrimSpace(s) != "" {
				vals = append(vals, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				vals = append(vals, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				vals = append(vals, strings.TrimSpace(s))
			}
		}
	}
	return vals, true
}

// toolError renders err as a tool error tagged with its kind.
func toolError(err error) *mcp.CallToolResult {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", ae.Kind, ae.Error()))
	}
	return mcp.NewToolResultError(err.Error())
}

// elementRef resolves the display snapshot of elementID from the live
// diagram. Elements missing from the diagram get placeholder metadata.
func elementRef(d Diagram, elementID string) (linkage.ElementRef, bool) {
	ref, ok := d.GetElement(elementID)
	if !ok {
		return linkage.ElementRef{ID: elementID, Name: "Unnamed Element", Type: linkage.KindUnknown}, false
	}
	if ref.Name == "" {
		ref.Name = "Unnamed Element"
	}
	return ref, true
}

// writeFile writes data to path, creating parent directories.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// persistNote returns a warning line when the last write-through failed.
func persistNote(store *linkage.Store) string {
	if err := store.LastPersistError(); err != nil {
		return fmt.Sprintf("\n\n⚠️ Changes are kept in memory only: %v", err)
	}
	return ""
}
