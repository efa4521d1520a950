package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/HendryAvila/storymap/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── SessionExportTool ──────────────────────────────────────────────────────

// SessionExportTool handles the session_export MCP tool.
type SessionExportTool struct {
	ctrl *session.Controller
}

// NewSessionExportTool creates a SessionExportTool.
func NewSessionExportTool(ctrl *session.Controller) *SessionExportTool {
	return &SessionExportTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for session_export.
func (t *SessionExportTool) Definition() mcp.Tool {
	return mcp.NewTool("session_export",
		mcp.WithDescription(
			"Export the whole session (stories, links and the saved diagram) as JSON. "+
				"Returns it inline unless a 'path' is given.",
		),
		mcp.WithString("path",
			mcp.Description("Write the JSON document to this path"),
		),
	)
}

// Handle processes the session_export tool call.
func (t *SessionExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := t.ctrl.ExportSession()
	if err != nil {
		return toolError(err), nil
	}

	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultText(string(data)), nil
	}
	if err := writeFile(path, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to export session: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session exported to %s (%d bytes)", path, len(data))), nil
}

// ─── SessionImportTool ──────────────────────────────────────────────────────

// SessionImportTool handles the session_import MCP tool.
type SessionImportTool struct {
	ctrl *session.Controller
}

// NewSessionImportTool creates a SessionImportTool.
func NewSessionImportTool(ctrl *session.Controller) *SessionImportTool {
	return &SessionImportTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for session_import.
func (t *SessionImportTool) Definition() mcp.Tool {
	return mcp.NewTool("session_import",
		mcp.WithDescription(
			"Replace the whole session with a document produced by session_export. "+
				"Nothing changes if the document or its diagram is invalid. Pass either 'json' or 'path'.",
		),
		mcp.WithString("json",
			mcp.Description("Session JSON document"),
		),
		mcp.WithString("path",
			mcp.Description("Path of a session JSON file to read"),
		),
	)
}

// Handle processes the session_import tool call.
func (t *SessionImportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc := []byte(req.GetString("json", ""))
	if path := req.GetString("path", ""); len(doc) == 0 && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
		}
		doc = data
	}
	if len(doc) == 0 {
		return mcp.NewToolResultError("either 'json' or 'path' is required"), nil
	}

	report, err := t.ctrl.ImportSession(ctx, doc)
	if err != nil {
		return toolError(err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session imported: %d stor(ies), %d linked element(s).", report.Stories, report.Links)
	if !report.HasDiagram {
		b.WriteString("\nThe document had no saved diagram; the default diagram is loaded.")
	}
	if report.Repairs > 0 {
		fmt.Fprintf(&b, "\n%d inconsistent entr(ies) repaired.", report.Repairs)
	}
	if report.Reconciled > 0 {
		fmt.Fprintf(&b, "\n%d stale link(s) pruned.", report.Reconciled)
	}
	b.WriteString(persistNote(t.ctrl.Store()))
	return mcp.NewToolResultText(b.String()), nil
}

// ─── SessionClearTool ───────────────────────────────────────────────────────

// SessionClearTool handles the session_clear MCP tool.
type SessionClearTool struct {
	ctrl *session.Controller
}

// NewSessionClearTool creates a SessionClearTool.
func NewSessionClearTool(ctrl *session.Controller) *SessionClearTool {
	return &SessionClearTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for session_clear.
func (t *SessionClearTool) Definition() mcp.Tool {
	return mcp.NewTool("session_clear",
		mcp.WithDescription(
			"Delete every story, link and the saved diagram, and load the default diagram. "+
				"This cannot be undone; export the session first if in doubt.",
		),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true"),
		),
	)
}

// Handle processes the session_clear tool call.
func (t *SessionClearTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !boolArg(req, "confirm", false) {
		return mcp.NewToolResultError("'confirm' must be true to clear the session"), nil
	}
	if err := t.ctrl.ClearAll(ctx); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Session cleared." + persistNote(t.ctrl.Store())), nil
}

// ─── LinksStaleTool ─────────────────────────────────────────────────────────

// LinksStaleTool handles the links_stale MCP tool.
type LinksStaleTool struct {
	ctrl *session.Controller
}

// NewLinksStaleTool creates a LinksStaleTool.
func NewLinksStaleTool(ctrl *session.Controller) *LinksStaleTool {
	return &LinksStaleTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for links_stale.
func (t *LinksStaleTool) Definition() mcp.Tool {
	return mcp.NewTool("links_stale",
		mcp.WithDescription(
			"List linked elements that are no longer on the live diagram (deleted, or left behind by diagram_new). "+
				"They are kept until links_prune is called.",
		),
	)
}

// Handle processes the links_stale tool call.
func (t *LinksStaleTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stale, err := t.ctrl.StaleLinks()
	if err != nil {
		return toolError(err), nil
	}
	if len(stale) == 0 {
		return mcp.NewToolResultText("No stale links."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Stale Links (%d)\n\n", len(stale))
	for _, ref := range stale {
		n := len(t.ctrl.Store().GetElementLinks(ref.ID))
		fmt.Fprintf(&b, "- `%s` %s (%s): %d stor(ies)\n", ref.ID, ref.Name, ref.Type.Label(), n)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── LinksPruneTool ─────────────────────────────────────────────────────────

// LinksPruneTool handles the links_prune MCP tool.
type LinksPruneTool struct {
	ctrl *session.Controller
}

// NewLinksPruneTool creates a LinksPruneTool.
func NewLinksPruneTool(ctrl *session.Controller) *LinksPruneTool {
	return &LinksPruneTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for links_prune.
func (t *LinksPruneTool) Definition() mcp.Tool {
	return mcp.NewTool("links_prune",
		mcp.WithDescription("Remove every link to an element that is not on the live diagram. Stories themselves are kept."),
	)
}

// Handle processes the links_prune tool call.
func (t *LinksPruneTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := t.ctrl.PruneStaleLinks(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Pruned %d stale link entr(ies).%s", n, persistNote(t.ctrl.Store()))), nil
}
