package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the storymap-review MCP prompt.
// It asks the AI to audit story coverage of the live diagram.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("storymap-review",
		mcp.WithPromptDescription(
			"Review how well user stories cover the current process. "+
				"Shows uncovered steps, orphan stories and stale links.",
		),
	)
}

// Handle processes the storymap-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Story coverage review",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please review the story coverage of my process.\n\n" +
						"1. Run `diagram_elements` and list the tasks, events and gateways with no linked story\n" +
						"2. Run `story_list` and list the stories linked to no element\n" +
						"3. Run `links_stale` and tell me which links point at elements no longer on the diagram\n" +
						"4. Suggest what to do next, but ask me before calling `links_prune` or deleting anything",
				),
			},
		},
	}, nil
}
