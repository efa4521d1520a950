package resources

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/HendryAvila/storymap/internal/bpmn"
	"github.com/HendryAvila/storymap/internal/linkage"
	"github.com/HendryAvila/storymap/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPort struct{}

func (failingPort) Read(context.Context) (*linkage.State, error) { return nil, nil }
func (failingPort) Write(context.Context, *linkage.State) error {
	return errors.New("disk full")
}

func readSummary(t *testing.T, h *Handler) (Summary, mcp.TextResourceContents) {
	t.Helper()
	req := mcp.ReadResourceRequest{}
	req.Params.URI = SummaryURI
	contents, err := h.HandleSummary(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)

	var s Summary
	if text.MIMEType == "application/json" {
		require.NoError(t, json.Unmarshal([]byte(text.Text), &s))
	}
	return s, text
}

func TestHandleSummary(t *testing.T) {
	st := linkage.NewState()
	st.UserStories = []linkage.Story{{ID: "s1", Title: "A"}, {ID: "s2", Title: "B"}}
	st.ElementLinks["Task_1"] = linkage.Link{StoryIDs: []string{"s1", "s2"}}
	st.ElementLinks["Gone_1"] = linkage.Link{StoryIDs: []string{"s1"}}

	store := linkage.NewStore(st, failingPort{}, linkage.Options{Backend: "file"})
	engine := bpmn.NewEngine()
	ctrl := session.NewController(store, engine, session.Options{DefaultDiagram: bpmn.DefaultDiagram})
	_, err := ctrl.Start(context.Background())
	require.NoError(t, err)

	h := NewHandler(ctrl, engine, "file")
	assert.Equal(t, SummaryURI, h.SummaryResource().URI)

	s, _ := readSummary(t, h)
	assert.Equal(t, "ready", s.State)
	assert.Equal(t, 2, s.Stories)
	assert.Equal(t, 2, s.LinkedElements)
	assert.Equal(t, 3, s.Links)
	assert.Equal(t, []string{"Task_1"}, s.Highlighted)
	assert.Equal(t, 1, s.StaleLinks)
	assert.False(t, s.DiagramSaved)
	assert.True(t, s.Storage.Healthy)

	// A failed write-through shows up as unhealthy storage.
	store.UpsertStory(context.Background(), linkage.Story{ID: "s3", Title: "C"})
	s, _ = readSummary(t, h)
	assert.False(t, s.Storage.Healthy)
	assert.Contains(t, s.Storage.LastError, "disk full")
	assert.Equal(t, 3, s.Stories, "session keeps running in memory")
}

func TestHandleSummary_NotStarted(t *testing.T) {
	store := linkage.NewStore(nil, nil, linkage.Options{})
	engine := bpmn.NewEngine()
	ctrl := session.NewController(store, engine, session.Options{DefaultDiagram: bpmn.DefaultDiagram})

	_, text := readSummary(t, NewHandler(ctrl, engine, "memory"))
	assert.Equal(t, "text/plain", text.MIMEType)
	assert.Contains(t, text.Text, "session not started")
}
