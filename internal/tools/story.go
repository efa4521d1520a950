package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/storymap/internal/apperr"
	"github.com/HendryAvila/storymap/internal/linkage"
	"github.com/HendryAvila/storymap/internal/stories"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── StoryListTool ──────────────────────────────────────────────────────────

// StoryListTool handles the story_list MCP tool.
type StoryListTool struct {
	stories *stories.Manager
}

// NewStoryListTool creates a StoryListTool.
func NewStoryListTool(m *stories.Manager) *StoryListTool {
	return &StoryListTool{stories: m}
}

// Definition returns the MCP tool definition for story_list.
func (t *StoryListTool) Definition() mcp.Tool {
	return mcp.NewTool("story_list",
		mcp.WithDescription("List all user stories in creation order with the number of diagram elements each is linked to."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of stories to return (default: all)"),
		),
	)
}

// Handle processes the story_list tool call.
func (t *StoryListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	views := t.stories.Views()
	if len(views) == 0 {
		return mcp.NewToolResultText("No user stories yet. Create one with story_save."), nil
	}

	limit := intArg(req, "limit", 0)
	if limit > 0 && limit < len(views) {
		views = views[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## User Stories (%d)\n\n", len(views))
	for _, v := range views {
		fmt.Fprintf(&b, "- **%s** `%s` linked to %d element(s)\n", v.Title, v.ID, len(v.Elements))
		if v.Description != "" {
			fmt.Fprintf(&b, "  %s\n", v.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── StoryGetTool ───────────────────────────────────────────────────────────

// StoryGetTool handles the story_get MCP tool.
type StoryGetTool struct {
	stories *stories.Manager
}

// NewStoryGetTool creates a StoryGetTool.
func NewStoryGetTool(m *stories.Manager) *StoryGetTool {
	return &StoryGetTool{stories: m}
}

// Definition returns the MCP tool definition for story_get.
func (t *StoryGetTool) Definition() mcp.Tool {
	return mcp.NewTool("story_get",
		mcp.WithDescription("Show one user story with its acceptance criteria and every diagram element linked to it."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Story ID"),
		),
	)
}

// Handle processes the story_get tool call.
func (t *StoryGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	v, ok := t.stories.View(id)
	if !ok {
		return toolError(apperr.NotFound("get story", "story "+id)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\nID: %s\n", v.Title, v.ID)
	if v.Description != "" {
		fmt.Fprintf(&b, "\n## Description\n\n%s\n", v.Description)
	}
	if v.AcceptanceCriteria != "" {
		fmt.Fprintf(&b, "\n## Acceptance Criteria\n\n%s\n", v.AcceptanceCriteria)
	}
	b.WriteString("\n## Linked Elements\n\n")
	if len(v.Elements) == 0 {
		b.WriteString("None\n")
	}
	for _, el := range v.Elements {
		fmt.Fprintf(&b, "- %s (%s) `%s`\n", el.Name, el.Label, el.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── StorySaveTool ──────────────────────────────────────────────────────────

// StorySaveTool handles the story_save MCP tool.
type StorySaveTool struct {
	stories *stories.Manager
	store   *linkage.Store
}

// NewStorySaveTool creates a StorySaveTool.
func NewStorySaveTool(m *stories.Manager, store *linkage.Store) *StorySaveTool {
	return &StorySaveTool{stories: m, store: store}
}

// Definition returns the MCP tool definition for story_save.
func (t *StorySaveTool) Definition() mcp.Tool {
	return mcp.NewTool("story_save",
		mcp.WithDescription(
			"Create or edit a user story. Omit 'id' to create a new story; pass an existing id to edit it. "+
				"When editing, omitted fields keep their current value. Surrounding whitespace is trimmed and the title must not be empty.",
		),
		mcp.WithString("id",
			mcp.Description("ID of the story to edit (omit to create)"),
		),
		mcp.WithString("title",
			mcp.Description("Story title, e.g. 'As a customer I can pay by card' (required when creating)"),
		),
		mcp.WithString("description",
			mcp.Description("Free-text description"),
		),
		mcp.WithString("acceptance_criteria",
			mcp.Description("Free-text acceptance criteria"),
		),
	)
}

// Handle processes the story_save tool call.
func (t *StorySaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var draft stories.Draft
	if id := req.GetString("id", ""); id != "" {
		d, err := t.stories.StartEdit(id)
		if err != nil {
			return toolError(err), nil
		}
		draft = d
	} else {
		draft = t.stories.StartCreate()
	}

	args := req.GetArguments()
	if _, ok := args["title"]; ok {
		draft.Title = req.GetString("title", "")
	}
	if _, ok := args["description"]; ok {
		draft.Description = req.GetString("description", "")
	}
	if _, ok := args["acceptance_criteria"]; ok {
		draft.AcceptanceCriteria = req.GetString("acceptance_criteria", "")
	}

	story, err := t.stories.Commit(ctx, draft)
	if err != nil {
		t.stories.Discard(draft)
		return toolError(err), nil
	}

	action := "updated"
	if draft.IsNew {
		action = "created"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Story %s: %q\nID: %s%s", action, story.Title, story.ID, persistNote(t.store))), nil
}

// ─── StoryDeleteTool ────────────────────────────────────────────────────────

// StoryDeleteTool handles the story_delete MCP tool.
type StoryDeleteTool struct {
	stories *stories.Manager
	store   *linkage.Store
}

// NewStoryDeleteTool creates a StoryDeleteTool.
func NewStoryDeleteTool(m *stories.Manager, store *linkage.Store) *StoryDeleteTool {
	return &StoryDeleteTool{stories: m, store: store}
}

// Definition returns the MCP tool definition for story_delete.
func (t *StoryDeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("story_delete",
		mcp.WithDescription(
			"Delete a user story. It is removed from every element it was linked to, "+
				"and elements left without stories lose their highlight.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Story ID to delete"),
		),
	)
}

// Handle processes the story_delete tool call.
func (t *StoryDeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	linked := t.store.LinkedElementCount(id)
	if err := t.stories.Remove(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Story %s deleted (was linked to %d element(s))%s", id, linked, persistNote(t.store))), nil
}
