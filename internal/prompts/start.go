// Package prompts implements MCP prompt handlers for storymap.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to run a sequence of tools. Unlike tools (which the AI
// calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the storymap-start MCP prompt.
// It walks the user from an empty session to a diagram with linked stories.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("storymap-start",
		mcp.WithPromptDescription(
			"Map user stories onto a business process. "+
				"Loads or creates a BPMN diagram, captures user stories, "+
				"and links each story to the process steps it touches.",
		),
		mcp.WithArgument("process",
			mcp.ArgumentDescription("Name of the business process to map (e.g. 'order checkout')"),
		),
		mcp.WithArgument("diagram_path",
			mcp.ArgumentDescription("Optional path of an existing .bpmn file to import first"),
		),
	)
}

// Handle processes the storymap-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	process := "my process"
	diagramPath := ""
	if args := req.Params.Arguments; args != nil {
		if name, ok := args["process"]; ok && name != "" {
			process = name
		}
		diagramPath = args["diagram_path"]
	}

	firstStep := "Run `diagram_elements` to see the current diagram (the default one is start → Sample Task → end)"
	if diagramPath != "" {
		firstStep = fmt.Sprintf("Run `diagram_import` with path='%s', then `diagram_elements` to see its steps", diagramPath)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Map stories onto: %s", process),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to map user stories onto the '%s' process.\n\n"+
						"Please:\n"+
						"1. %s\n"+
						"2. Ask me who the users of this process are and what they need from each step\n"+
						"3. For each need, write a user story and save it with `story_save` "+
						"(title, description, acceptance criteria)\n"+
						"4. Link each story to the elements it touches with `element_links_set`\n"+
						"5. Run `diagram_save` so the diagram is restored next time\n"+
						"6. Finish with `diagram_elements` linked_only=false and point out steps that still have no story",
					process, firstStep,
				)),
			},
		},
	}, nil
}
