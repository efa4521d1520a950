// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources that depend on them.
// No business logic lives here, only wiring.
package server

import (
	"github.com/HendryAvila/storymap/internal/prompts"
	"github.com/HendryAvila/storymap/internal/resources"
	"github.com/HendryAvila/storymap/internal/tools"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server for a bootstrapped app with every tool,
// prompt and resource registered.
func New(app *App) *server.MCPServer {
	s := server.NewMCPServer(
		"storymap",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerStoryTools(s, app)
	registerDiagramTools(s, app)
	registerSessionTools(s, app)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	reviewPrompt := prompts.NewReviewPrompt()
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(app.Session, app.Engine, app.Backend)
	s.AddResource(resourceHandler.SummaryResource(), resourceHandler.HandleSummary)

	return s
}

// registerStoryTools registers the story and element-link tools.
func registerStoryTools(s *server.MCPServer, app *App) {
	storyList := tools.NewStoryListTool(app.Stories)
	s.AddTool(storyList.Definition(), storyList.Handle)

	storyGet := tools.NewStoryGetTool(app.Stories)
	s.AddTool(storyGet.Definition(), storyGet.Handle)

	storySave := tools.NewStorySaveTool(app.Stories, app.Store)
	s.AddTool(storySave.Definition(), storySave.Handle)

	storyDelete := tools.NewStoryDeleteTool(app.Stories, app.Store)
	s.AddTool(storyDelete.Definition(), storyDelete.Handle)

	linksGet := tools.NewElementLinksGetTool(app.Stories, app.Engine)
	s.AddTool(linksGet.Definition(), linksGet.Handle)

	linksSet := tools.NewElementLinksSetTool(app.Stories, app.Store, app.Engine)
	s.AddTool(linksSet.Definition(), linksSet.Handle)

	unlink := tools.NewElementUnlinkTool(app.Stories, app.Store)
	s.AddTool(unlink.Definition(), unlink.Handle)
}

// registerDiagramTools registers the diagram commands.
func registerDiagramTools(s *server.MCPServer, app *App) {
	elements := tools.NewDiagramElementsTool(app.Engine, app.Store)
	s.AddTool(elements.Definition(), elements.Handle)

	newDiagram := tools.NewDiagramNewTool(app.Session)
	s.AddTool(newDiagram.Definition(), newDiagram.Handle)

	save := tools.NewDiagramSaveTool(app.Session)
	s.AddTool(save.Definition(), save.Handle)

	imp := tools.NewDiagramImportTool(app.Session)
	s.AddTool(imp.Definition(), imp.Handle)

	export := tools.NewDiagramExportTool(app.Session, app.Config.ExportDir)
	s.AddTool(export.Definition(), export.Handle)
}

// registerSessionTools registers backup, reset and reconciliation tools.
func registerSessionTools(s *server.MCPServer, app *App) {
	export := tools.NewSessionExportTool(app.Session)
	s.AddTool(export.Definition(), export.Handle)

	imp := tools.NewSessionImportTool(app.Session)
	s.AddTool(imp.Definition(), imp.Handle)

	clearTool := tools.NewSessionClearTool(app.Session)
	s.AddTool(clearTool.Definition(), clearTool.Handle)

	stale := tools.NewLinksStaleTool(app.Session)
	s.AddTool(stale.Definition(), stale.Handle)

	prune := tools.NewLinksPruneTool(app.Session)
	s.AddTool(prune.Definition(), prune.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use storymap.
func serverInstructions() string {
	return `You have access to storymap, an MCP server that links user stories to the steps of a BPMN business process.

## Concepts
- The DIAGRAM is a BPMN 2.0 process. Its elements (tasks, events, gateways, flows) have stable ids such as Task_1.
- A STORY is a user-authored requirement: title, description, acceptance criteria.
- A LINK ties one story to one element. Links are many-to-many.
- An element with at least one linked story is HIGHLIGHTED.

## How the tools work
- story_save creates a story when 'id' is omitted and edits it otherwise. Titles must not be empty.
- element_links_set REPLACES the full story set of an element. To add a story, pass the current
  ids (from element_links_get) plus the new one. An empty list clears the element.
- element_unlink removes one story from one element and keeps the rest.
- story_delete removes the story from every element it was linked to.
- Diagram changes (diagram_import, diagram_new) are live immediately but only restored on the
  next start after diagram_save.

## Stale links
Links are keyed by element id. When an element is deleted from the diagram, or diagram_new
replaces it, its links are KEPT but become inactive. Use links_stale to list them and
links_prune to remove them. Always ask the user before pruning.

## Errors
Failed tools return a tagged message such as [validation], [import], [busy] or [not_found].
[busy] means another diagram operation is running: retry after it finishes.
A warning about changes kept in memory only means storage is failing; the session keeps
working but will be lost on restart until storage recovers.

Read storymap://session/summary for counts, highlighted elements and storage health.`
}
