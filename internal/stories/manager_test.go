package stories

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/HendryAvila/storymap/internal/apperr"
	"github.com/HendryAvila/storymap/internal/linkage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

// fakeEngine records the last highlight command per element.
type fakeEngine struct {
	on    map[string]bool
	calls int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{on: map[string]bool{}}
}

func (e *fakeEngine) SetHighlight(id string, on bool) {
	e.calls++
	e.on[id] = on
}

func newTestManager(t *testing.T) (*Manager, *linkage.Store, *fakeEngine) {
	t.Helper()
	store := linkage.NewStore(nil, nil, linkage.Options{Backend: "memory"})
	engine := newFakeEngine()
	n := 0
	m := NewManager(store, engine, Options{
		NewID: func() string {
			n++
			return fmt.Sprintf("story_%d", n)
		},
	})
	return m, store, engine
}

func create(t *testing.T, m *Manager, title string) linkage.Story {
	t.Helper()
	d := m.StartCreate()
	d.Title = title
	s, err := m.Commit(context.Background(), d)
	require.NoError(t, err)
	return s
}

func task(id string) linkage.ElementRef {
	return linkage.ElementRef{ID: id, Name: "Sample Task", Type: linkage.KindTask}
}

// ─── Drafts ──────────────────────────────────────────────────────────────────

func TestStartCreate_NotStored(t *testing.T) {
	m, store, _ := newTestManager(t)

	d := m.StartCreate()
	assert.Equal(t, "story_1", d.ID)
	assert.True(t, d.IsNew)
	assert.Empty(t, store.ListStories())

	m.Discard(d)
	assert.Empty(t, store.ListStories())
}

func TestStartEdit_DraftIsDetached(t *testing.T) {
	m, store, _ := newTestManager(t)
	s := create(t, m, "Checkout")

	d, err := m.StartEdit(s.ID)
	require.NoError(t, err)
	assert.False(t, d.IsNew)
	d.Title = "Changed but not saved"

	got, _ := store.GetStory(s.ID)
	assert.Equal(t, "Checkout", got.Title)
}

func TestStartEdit_Unknown(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.StartEdit("nope")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCommit_TrimsFields(t *testing.T) {
	m, store, _ := newTestManager(t)

	d := m.StartCreate()
	d.Title = "  Checkout  "
	d.Description = "\tpay for items\n"
	d.AcceptanceCriteria = " receipt shown "
	_, err := m.Commit(context.Background(), d)
	require.NoError(t, err)

	got, ok := store.GetStory(d.ID)
	require.True(t, ok)
	assert.Equal(t, linkage.Story{
		ID:                 d.ID,
		Title:              "Checkout",
		Description:        "pay for items",
		AcceptanceCriteria: "receipt shown",
	}, got)
}

func TestCommit_EmptyTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"newlines", "\n\t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, _ := newTestManager(t)
			existing := create(t, m, "Keep me")

			d := m.StartCreate()
			d.Title = tt.title
			_, err := m.Commit(context.Background(), d)

			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Contains(t, err.Error(), "title is required")
			assert.Equal(t, []linkage.Story{existing}, store.ListStories())
		})
	}
}

func TestCommit_EditReplacesInPlace(t *testing.T) {
	m, store, _ := newTestManager(t)
	a := create(t, m, "A")
	create(t, m, "B")

	d, err := m.StartEdit(a.ID)
	require.NoError(t, err)
	d.Title = "A2"
	_, err = m.Commit(context.Background(), d)
	require.NoError(t, err)

	list := store.ListStories()
	require.Len(t, list, 2)
	assert.Equal(t, "A2", list[0].Title)
}

func TestNewID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewID()
		assert.True(t, strings.HasPrefix(id, IDPrefix))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

// ─── Links and highlights ────────────────────────────────────────────────────

func TestScenario_CreateLinkDelete(t *testing.T) {
	m, store, engine := newTestManager(t)
	ctx := context.Background()
	s1 := create(t, m, "Checkout")

	linked, err := m.UpdateElementLinks(ctx, "Task_1", []string{s1.ID}, task("Task_1"))
	require.NoError(t, err)
	assert.Equal(t, []string{s1.ID}, linked)
	assert.True(t, engine.on["Task_1"])

	require.NoError(t, m.Remove(ctx, s1.ID))
	assert.Empty(t, store.GetElementLinks("Task_1"))
	assert.NotContains(t, store.AllLinks(), "Task_1")
	assert.False(t, engine.on["Task_1"])
}

func TestScenario_UnlinkOneKeepsHighlight(t *testing.T) {
	m, store, engine := newTestManager(t)
	ctx := context.Background()
	s1 := create(t, m, "Checkout")
	s2 := create(t, m, "Refund")

	_, err := m.UpdateElementLinks(ctx, "Task_1", []string{s1.ID, s2.ID}, task("Task_1"))
	require.NoError(t, err)

	m.UnlinkOne(ctx, s1.ID, "Task_1")
	assert.Equal(t, []string{s2.ID}, store.GetElementLinks("Task_1"))
	assert.True(t, engine.on["Task_1"])

	m.UnlinkOne(ctx, s2.ID, "Task_1")
	assert.False(t, engine.on["Task_1"])
}

func TestRemove_OnlyClearsElementsLeftEmpty(t *testing.T) {
	m, _, engine := newTestManager(t)
	ctx := context.Background()
	s1 := create(t, m, "A")
	s2 := create(t, m, "B")

	_, _ = m.UpdateElementLinks(ctx, "Task_1", []string{s1.ID}, task("Task_1"))
	_, _ = m.UpdateElementLinks(ctx, "Task_2", []string{s1.ID, s2.ID}, task("Task_2"))

	require.NoError(t, m.Remove(ctx, s1.ID))
	assert.False(t, engine.on["Task_1"])
	assert.True(t, engine.on["Task_2"])
}

func TestRemove_Unknown(t *testing.T) {
	m, _, engine := newTestManager(t)
	err := m.Remove(context.Background(), "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Zero(t, engine.calls)
}

func TestUpdateElementLinks_EmptySelectionClearsHighlight(t *testing.T) {
	m, store, engine := newTestManager(t)
	ctx := context.Background()
	s1 := create(t, m, "A")
	_, _ = m.UpdateElementLinks(ctx, "Task_1", []string{s1.ID}, task("Task_1"))

	linked, err := m.UpdateElementLinks(ctx, "Task_1", nil, task("Task_1"))
	require.NoError(t, err)
	assert.Empty(t, linked)
	assert.NotContains(t, store.AllLinks(), "Task_1")
	assert.False(t, engine.on["Task_1"])
}

func TestUpdateElementLinks_UnknownStoriesDoNotHighlight(t *testing.T) {
	m, _, engine := newTestManager(t)

	linked, err := m.UpdateElementLinks(context.Background(), "Task_1", []string{"ghost"}, task("Task_1"))
	require.NoError(t, err)
	assert.Empty(t, linked)
	assert.False(t, engine.on["Task_1"])
}

func TestUpdateElementLinks_BlankElement(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.UpdateElementLinks(context.Background(), " ", []string{"x"}, task(""))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

// ─── Views ───────────────────────────────────────────────────────────────────

func TestViews(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	s1 := create(t, m, "A")
	s2 := create(t, m, "B")
	_, _ = m.UpdateElementLinks(ctx, "Task_2", []string{s1.ID, s2.ID}, task("Task_2"))
	_, _ = m.UpdateElementLinks(ctx, "Gateway_1", []string{s1.ID},
		linkage.ElementRef{Name: "Approve?", Type: linkage.KindExclusiveGateway})

	v, ok := m.View(s1.ID)
	require.True(t, ok)
	require.Len(t, v.Elements, 2)
	assert.Equal(t, "Gateway_1", v.Elements[0].ID, "ordered by element id")
	assert.Equal(t, linkage.KindExclusiveGateway.Label(), v.Elements[0].Label)
	assert.Equal(t, "Task_2", v.Elements[1].ID)

	_, ok = m.View("ghost")
	assert.False(t, ok)

	views := m.Views()
	require.Len(t, views, 2)
	assert.Len(t, views[1].Elements, 1)

	titles := []string{}
	for _, s := range m.ElementStories("Task_2") {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"A", "B"}, titles)
	assert.Empty(t, m.ElementStories("Task_404"))
}
