package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/storymap/internal/linkage"
	"github.com/HendryAvila/storymap/internal/stories"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── ElementLinksGetTool ────────────────────────────────────────────────────

// ElementLinksGetTool handles the element_links_get MCP tool.
type ElementLinksGetTool struct {
	stories *stories.Manager
	diagram Diagram
}

// NewElementLinksGetTool creates an ElementLinksGetTool.
func NewElementLinksGetTool(m *stories.Manager, d Diagram) *ElementLinksGetTool {
	return &ElementLinksGetTool{stories: m, diagram: d}
}

// Definition returns the MCP tool definition for element_links_get.
func (t *ElementLinksGetTool) Definition() mcp.Tool {
	return mcp.NewTool("element_links_get",
		mcp.WithDescription("Show the user stories linked to a diagram element."),
		mcp.WithString("element_id",
			mcp.Required(),
			mcp.Description("Diagram element ID (e.g. Task_1)"),
		),
	)
}

// Handle processes the element_links_get tool call.
func (t *ElementLinksGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	elementID := req.GetString("element_id", "")
	if elementID == "" {
		return mcp.NewToolResultError("'element_id' is required"), nil
	}

	ref, onDiagram := elementRef(t.diagram, elementID)
	linked := t.stories.ElementStories(elementID)

	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%s) `%s`\n\n", ref.Name, ref.Type.Label(), elementID)
	if !onDiagram {
		b.WriteString("Element is not on the current diagram.\n\n")
	}
	if len(linked) == 0 {
		b.WriteString("No user stories linked to this element.")
		return mcp.NewToolResultText(b.String()), nil
	}
	fmt.Fprintf(&b, "Linked User Stories (%d):\n", len(linked))
	for _, s := range linked {
		fmt.Fprintf(&b, "- %s `%s`\n", s.Title, s.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── ElementLinksSetTool ────────────────────────────────────────────────────

// ElementLinksSetTool handles the element_links_set MCP tool.
type ElementLinksSetTool struct {
	stories *stories.Manager
	store   *linkage.Store
	diagram Diagram
}

// NewElementLinksSetTool creates an ElementLinksSetTool.
func NewElementLinksSetTool(m *stories.Manager, store *linkage.Store, d Diagram) *ElementLinksSetTool {
	return &ElementLinksSetTool{stories: m, store: store, diagram: d}
}

// Definition returns the MCP tool definition for element_links_set.
func (t *ElementLinksSetTool) Definition() mcp.Tool {
	return mcp.NewTool("element_links_set",
		mcp.WithDescription(
			"Replace the full set of user stories linked to a diagram element. This is not additive: "+
				"stories left out are unlinked, and an empty list removes every link and the element's highlight.",
		),
		mcp.WithString("element_id",
			mcp.Required(),
			mcp.Description("Diagram element ID (e.g. Task_1)"),
		),
		mcp.WithArray("story_ids",
			mcp.Required(),
			mcp.Description("IDs of the stories to link; empty to clear"),
			mcp.WithStringItems(),
		),
	)
}

// Handle processes the element_links_set tool call.
func (t *ElementLinksSetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	elementID := req.GetString("element_id", "")
	if elementID == "" {
		return mcp.NewToolResultError("'element_id' is required"), nil
	}
	storyIDs, ok := stringSliceArg(req, "story_ids")
	if !ok {
		return mcp.NewToolResultError("'story_ids' is required (use an empty list to clear)"), nil
	}

	ref, _ := elementRef(t.diagram, elementID)
	linked, err := t.stories.UpdateElementLinks(ctx, elementID, storyIDs, ref)
	if err != nil {
		return toolError(err), nil
	}

	var b strings.Builder
	if len(linked) == 0 {
		fmt.Fprintf(&b, "Element %s has no linked stories.", elementID)
	} else {
		fmt.Fprintf(&b, "Element %s linked to %d stor(ies): %s", elementID, len(linked), strings.Join(linked, ", "))
	}
	if dropped := len(storyIDs) - len(linked); dropped > 0 {
		fmt.Fprintf(&b, "\n%d unknown or duplicate story ID(s) ignored.", dropped)
	}
	b.WriteString(persistNote(t.store))
	return mcp.NewToolResultText(b.String()), nil
}

// ─── ElementUnlinkTool ──────────────────────────────────────────────────────

// ElementUnlinkTool handles the element_unlink MCP tool.
type ElementUnlinkTool struct {
	stories *stories.Manager
	store   *linkage.Store
}

// NewElementUnlinkTool creates an ElementUnlinkTool.
func NewElementUnlinkTool(m *stories.Manager, store *linkage.Store) *ElementUnlinkTool {
	return &ElementUnlinkTool{stories: m, store: store}
}

// Definition returns the MCP tool definition for element_unlink.
func (t *ElementUnlinkTool) Definition() mcp.Tool {
	return mcp.NewTool("element_unlink",
		mcp.WithDescription("Remove a single user story from a diagram element, keeping its other links."),
		mcp.WithString("story_id",
			mcp.Required(),
			mcp.Description("Story ID to unlink"),
		),
		mcp.WithString("element_id",
			mcp.Required(),
			mcp.Description("Diagram element ID"),
		),
	)
}

// Handle processes the element_unlink tool call.
func (t *ElementUnlinkTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	storyID := req.GetString("story_id", "")
	elementID := req.GetString("element_id", "")
	if storyID == "" || elementID == "" {
		return mcp.NewToolResultError("'story_id' and 'element_id' are required"), nil
	}

	if !t.store.IsLinked(storyID, elementID) {
		return mcp.NewToolResultText(fmt.Sprintf("Story %s is not linked to %s; nothing to do.", storyID, elementID)), nil
	}
	t.stories.UnlinkOne(ctx, storyID, elementID)

	remaining := len(t.store.GetElementLinks(elementID))
	return mcp.NewToolResultText(fmt.Sprintf("Unlinked %s from %s (%d stor(ies) remain)%s",
		storyID, elementID, remaining, persistNote(t.store))), nil
}
