// Package resources implements MCP resource handlers for storymap.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (storymap://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/storymap/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// SummaryURI addresses the session summary resource.
const SummaryURI = "storymap://session/summary"

// Highlights reports which diagram elements are currently marked.
type Highlights interface {
	Highlighted() []string
}

// Handler manages storymap resource endpoints.
type Handler struct {
	ctrl       *session.Controller
	highlights Highlights
	backend    string
}

// NewHandler creates a resource Handler with its dependencies. backend
// names the storage in use.
func NewHandler(ctrl *session.Controller, highlights Highlights, backend string) *Handler {
	return &Handler{ctrl: ctrl, highlights: highlights, backend: backend}
}

// Summary is the JSON body of the session summary resource.
type Summary struct {
	State          string   `json:"state"`
	Stories        int      `json:"stories"`
	LinkedElements int      `json:"linkedElements"`
	Links          int      `json:"links"`
	Highlighted    []string `json:"highlighted"`
	StaleLinks     int      `json:"staleLinks"`
	DiagramSaved   bool     `json:"diagramSaved"`
	Storage        Storage  `json:"storage"`
}

// Storage reports the persistence status.
type Storage struct {
	Backend   string `json:"backend"`
	Healthy   bool   `json:"healthy"`
	LastError string `json:"lastError,omitempty"`
}

// SummaryResource returns the MCP resource definition for the session
// summary.
func (h *Handler) SummaryResource() mcp.Resource {
	return mcp.NewResource(
		SummaryURI,
		"Storymap Session Summary",
		mcp.WithResourceDescription("Story and link counts, highlighted elements, stale links and storage health"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleSummary returns the current session summary as JSON.
func (h *Handler) HandleSummary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	summary, err := h.summarize()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling summary: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *Handler) summarize() (Summary, error) {
	stale, err := h.ctrl.StaleLinks()
	if err != nil {
		return Summary{}, err
	}

	store := h.ctrl.Store()
	links := store.AllLinks()
	pairs := 0
	for _, link := range links {
		pairs += len(link.StoryIDs)
	}
	_, saved := store.Diagram()

	storage := Storage{Backend: h.backend, Healthy: true}
	if perr := store.LastPersistError(); perr != nil {
		storage.Healthy = false
		storage.LastError = perr.Error()
	}

	return Summary{
		State:          h.ctrl.State().String(),
		Stories:        len(store.ListStories()),
		LinkedElements: len(links),
		Links:          pairs,
		Highlighted:    h.highlights.Highlighted(),
		StaleLinks:     len(stale),
		DiagramSaved:   saved,
		Storage:        storage,
	}, nil
}
