package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/storymap/internal/linkage"
	"github.com/HendryAvila/storymap/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── DiagramElementsTool ────────────────────────────────────────────────────

// DiagramElementsTool handles the diagram_elements MCP tool.
type DiagramElementsTool struct {
	diagram Diagram
	store   *linkage.Store
}

// NewDiagramElementsTool creates a DiagramElementsTool.
func NewDiagramElementsTool(d Diagram, store *linkage.Store) *DiagramElementsTool {
	return &DiagramElementsTool{diagram: d, store: store}
}

// Definition returns the MCP tool definition for diagram_elements.
func (t *DiagramElementsTool) Definition() mcp.Tool {
	return mcp.NewTool("diagram_elements",
		mcp.WithDescription(
			"List the elements of the live diagram in document order, with how many stories each is linked to. "+
				"Highlighted elements are marked with ●.",
		),
		mcp.WithBoolean("linked_only",
			mcp.Description("Only list elements with at least one linked story"),
		),
	)
}

// Handle processes the diagram_elements tool call.
func (t *DiagramElementsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	linkedOnly := boolArg(req, "linked_only", false)

	var b strings.Builder
	shown := 0
	for _, el := range t.diagram.ListElements() {
		n := len(t.store.GetElementLinks(el.ID))
		if linkedOnly && n == 0 {
			continue
		}
		mark := "○"
		if t.diagram.IsHighlighted(el.ID) {
			mark = "●"
		}
		name := el.Name
		if name == "" {
			name = "Unnamed Element"
		}
		fmt.Fprintf(&b, "%s `%s` %s (%s): %d stor(ies)\n", mark, el.ID, name, el.Type.Label(), n)
		shown++
	}
	if shown == 0 {
		return mcp.NewToolResultText("No matching elements on the diagram."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("## Diagram Elements (%d)\n\n%s", shown, b.String())), nil
}

// ─── DiagramNewTool ─────────────────────────────────────────────────────────

// DiagramNewTool handles the diagram_new MCP tool.
type DiagramNewTool struct {
	ctrl *session.Controller
}

// NewDiagramNewTool creates a DiagramNewTool.
func NewDiagramNewTool(ctrl *session.Controller) *DiagramNewTool {
	return &DiagramNewTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for diagram_new.
func (t *DiagramNewTool) Definition() mcp.Tool {
	return mcp.NewTool("diagram_new",
		mcp.WithDescription(
			"Replace the live diagram with the default start → task → end process. "+
				"Stories and links are kept; links to elements missing from the new diagram become inactive until pruned.",
		),
	)
}

// Handle processes the diagram_new tool call.
func (t *DiagramNewTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ctrl.NewDiagram(ctx); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("New diagram created. Run diagram_save to keep it."), nil
}

// ─── DiagramSaveTool ────────────────────────────────────────────────────────

// DiagramSaveTool handles the diagram_save MCP tool.
type DiagramSaveTool struct {
	ctrl *session.Controller
}

// NewDiagramSaveTool creates a DiagramSaveTool.
func NewDiagramSaveTool(ctrl *session.Controller) *DiagramSaveTool {
	return &DiagramSaveTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for diagram_save.
func (t *DiagramSaveTool) Definition() mcp.Tool {
	return mcp.NewTool("diagram_save",
		mcp.WithDescription("Save the live diagram into the session so it is restored on the next start."),
	)
}

// Handle processes the diagram_save tool call.
func (t *DiagramSaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ctrl.SaveDiagram(ctx); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Process saved successfully!" + persistNote(t.ctrl.Store())), nil
}

// ─── DiagramImportTool ──────────────────────────────────────────────────────

// DiagramImportTool handles the diagram_import MCP tool.
type DiagramImportTool struct {
	ctrl *session.Controller
}

// NewDiagramImportTool creates a DiagramImportTool.
func NewDiagramImportTool(ctrl *session.Controller) *DiagramImportTool {
	return &DiagramImportTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for diagram_import.
func (t *DiagramImportTool) Definition() mcp.Tool {
	return mcp.NewTool("diagram_import",
		mcp.WithDescription(
			"Load a BPMN 2.0 XML document as the live diagram and re-highlight every linked element. "+
				"If the document is invalid the current diagram is left untouched. Pass either 'xml' or 'path'.",
		),
		mcp.WithString("xml",
			mcp.Description("BPMN 2.0 XML document"),
		),
		mcp.WithString("path",
			mcp.Description("Path of a .bpmn file to read"),
		),
	)
}

// Handle processes the diagram_import tool call.
func (t *DiagramImportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc := req.GetString("xml", "")
	if path := req.GetString("path", ""); doc == "" && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
		}
		doc = string(data)
	}
	if doc == "" {
		return mcp.NewToolResultError("either 'xml' or 'path' is required"), nil
	}

	reconciled, err := t.ctrl.ImportDiagram(ctx, doc)
	if err != nil {
		return toolError(err), nil
	}

	response := "BPMN imported successfully!"
	if reconciled > 0 {
		response += fmt.Sprintf("\n%d link(s) to elements missing from this diagram were pruned.", reconciled)
	}
	response += "\nRun diagram_save to keep it."
	return mcp.NewToolResultText(response), nil
}

// ─── DiagramExportTool ──────────────────────────────────────────────────────

// DiagramExportTool handles the diagram_export MCP tool.
type DiagramExportTool struct {
	ctrl      *session.Controller
	exportDir string
}

// NewDiagramExportTool creates a DiagramExportTool that writes files to
// exportDir unless the caller supplies a path.
func NewDiagramExportTool(ctrl *session.Controller, exportDir string) *DiagramExportTool {
	return &DiagramExportTool{ctrl: ctrl, exportDir: exportDir}
}

// Definition returns the MCP tool definition for diagram_export.
func (t *DiagramExportTool) Definition() mcp.Tool {
	return mcp.NewTool("diagram_export",
		mcp.WithDescription(
			"Export the live diagram as a .bpmn file. Returns the XML inline unless 'write' is true or a 'path' is given.",
		),
		mcp.WithBoolean("write",
			mcp.Description("Write process.bpmn to the export directory"),
		),
		mcp.WithString("path",
			mcp.Description("Write the file to this path instead"),
		),
	)
}

// Handle processes the diagram_export tool call.
func (t *DiagramExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	art, err := t.ctrl.ExportDiagramFile(ctx)
	if err != nil {
		return toolError(err), nil
	}

	path := req.GetString("path", "")
	if path == "" && boolArg(req, "write", false) {
		path = filepath.Join(t.exportDir, art.Filename)
	}
	if path == "" {
		return mcp.NewToolResultText(string(art.Data)), nil
	}

	if err := writeFile(path, art.Data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to export diagram: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Exported %s (%s, %d bytes) to %s", art.Filename, art.ContentType, len(art.Data), path)), nil
}
