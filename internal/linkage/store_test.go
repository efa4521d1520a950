package linkage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/HendryAvila/storymap/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

// fakePort records writes and can be told to fail.
type fakePort struct {
	stored  *State
	readErr error
	failing error
	writes  int
}

func (p *fakePort) Read(context.Context) (*State, error) {
	if p.readErr != nil {
		return nil, p.readErr
	}
	if p.stored == nil {
		return nil, nil
	}
	return p.stored.Clone(), nil
}

func (p *fakePort) Write(_ context.Context, st *State) error {
	p.writes++
	if p.failing != nil {
		return p.failing
	}
	p.stored = st.Clone()
	return nil
}

func newTestStore(t *testing.T) (*Store, *fakePort) {
	t.Helper()
	port := &fakePort{}
	return NewStore(nil, port, Options{Backend: "fake"}), port
}

func seedStories(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		s.UpsertStory(context.Background(), Story{ID: id, Title: "Story " + id})
	}
}

func ref(id string) ElementRef {
	return ElementRef{ID: id, Name: "Name of " + id, Type: KindTask}
}

// assertInvariants checks both link invariants on the store's state.
func assertInvariants(t *testing.T, s *Store) {
	t.Helper()
	known := map[string]bool{}
	for _, st := range s.ListStories() {
		known[st.ID] = true
	}
	for elementID, link := range s.AllLinks() {
		assert.NotEmpty(t, link.StoryIDs, "element %s stored with empty set", elementID)
		for _, id := range link.StoryIDs {
			assert.True(t, known[id], "element %s references missing story %s", elementID, id)
		}
	}
}

// ─── Stories ─────────────────────────────────────────────────────────────────

func TestUpsertStory_InsertsInOrderAndReplacesInPlace(t *testing.T) {
	s, port := newTestStore(t)
	ctx := context.Background()

	s.UpsertStory(ctx, Story{ID: "a", Title: "A"})
	s.UpsertStory(ctx, Story{ID: "b", Title: "B"})
	s.UpsertStory(ctx, Story{ID: "a", Title: "A2"})

	stories := s.ListStories()
	require.Len(t, stories, 2)
	assert.Equal(t, "a", stories[0].ID)
	assert.Equal(t, "A2", stories[0].Title)
	assert.Equal(t, "b", stories[1].ID)
	assert.Equal(t, 3, port.writes, "every upsert writes through")
}

func TestUpsertStory_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	story := Story{ID: "a", Title: "A", Description: "d"}

	s.UpsertStory(context.Background(), story)
	s.UpsertStory(context.Background(), story)

	assert.Equal(t, []Story{story}, s.ListStories())
}

func TestListStories_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	seedStories(t, s, "a")

	list := s.ListStories()
	list[0].Title = "mutated"

	got, ok := s.GetStory("a")
	require.True(t, ok)
	assert.Equal(t, "Story a", got.Title)
}

func TestGetStory_Missing(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok := s.GetStory("nope")
	assert.False(t, ok)
}

func TestDeleteStory_CascadesThroughLinks(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedStories(t, s, "s1", "s2")

	s.SetElementLinks(ctx, "Task_1", []string{"s1", "s2"}, ref("Task_1"))
	s.SetElementLinks(ctx, "Task_2", []string{"s1"}, ref("Task_2"))

	s.DeleteStory(ctx, "s1")

	assert.Equal(t, []string{"s2"}, s.GetElementLinks("Task_1"))
	assert.Empty(t, s.GetElementLinks("Task_2"))
	_, present := s.AllLinks()["Task_2"]
	assert.False(t, present, "entry whose last story was deleted must disappear")
	assertInvariants(t, s)
}

func TestDeleteStory_UnknownIsNoop(t *testing.T) {
	s, port := newTestStore(t)
	seedStories(t, s, "a")
	before := port.writes

	s.DeleteStory(context.Background(), "missing")

	assert.Len(t, s.ListStories(), 1)
	assert.Equal(t, before, port.writes)
}

// ─── Links ───────────────────────────────────────────────────────────────────

func TestSetElementLinks_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	seedStories(t, s, "s1", "s2", "s3")

	s.SetElementLinks(context.Background(), "Task_1", []string{"s3", "s1"}, ref("Task_1"))

	assert.Equal(t, []string{"s3", "s1"}, s.GetElementLinks("Task_1"))
}

func TestSetElementLinks_FullReplaceNotAdditive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedStories(t, s, "s1", "s2")

	s.SetElementLinks(ctx, "Task_1", []string{"s1"}, ref("Task_1"))
	s.SetElementLinks(ctx, "Task_1", []string{"s2"}, ref("Task_1"))

	assert.Equal(t, []string{"s2"}, s.GetElementLinks("Task_1"))
}

func TestSetElementLinks_EmptySetRemovesEntry(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedStories(t, s, "s1")

	s.SetElementLinks(ctx, "Task_1", []string{"s1"}, ref("Task_1"))
	s.SetElementLinks(ctx, "Task_1", nil, ref("Task_1"))

	_, present := s.AllLinks()["Task_1"]
	assert.False(t, present)
	assert.Equal(t, []string{}, s.GetElementLinks("Task_1"))
}

func TestSetElementLinks_EmptySetOnAbsentEntry(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetElementLinks(context.Background(), "Task_9", []string{}, ref("Task_9"))
	assert.Empty(t, s.AllLinks())
}

func TestSetElementLinks_DropsDuplicatesAndUnknownStories(t *testing.T) {
	s, _ := newTestStore(t)
	seedStories(t, s, "s1")

	s.SetElementLinks(context.Background(), "Task_1", []string{"s1", "ghost", "s1"}, ref("Task_1"))

	assert.Equal(t, []string{"s1"}, s.GetElementLinks("Task_1"))
}

func TestSetElementLinks_RefreshesSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedStories(t, s, "s1")

	s.SetElementLinks(ctx, "Task_1", []string{"s1"}, ElementRef{Name: "Old", Type: KindTask})
	s.SetElementLinks(ctx, "Task_1", []string{"s1"}, ElementRef{Name: "New", Type: KindUserTask})

	refs := s.GetElementsForStory("s1")
	require.Len(t, refs, 1)
	assert.Equal(t, ElementRef{ID: "Task_1", Name: "New", Type: KindUserTask}, refs[0])
}

func TestUnlink(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedStories(t, s, "s1", "s2")
	s.SetElementLinks(ctx, "Task_1", []string{"s1", "s2"}, ref("Task_1"))

	s.Unlink(ctx, "s1", "Task_1")
	assert.Equal(t, []string{"s2"}, s.GetElementLinks("Task_1"))
	assert.False(t, s.IsLinked("s1", "Task_1"))
	assert.True(t, s.IsLinked("s2", "Task_1"))

	s.Unlink(ctx, "s2", "Task_1")
	_, present := s.AllLinks()["Task_1"]
	assert.False(t, present)
}

func TestUnlink_NotLinkedIsNoop(t *testing.T) {
	s, port := newTestStore(t)
	seedStories(t, s, "s1")
	before := port.writes

	s.Unlink(context.Background(), "s1", "Task_1")

	assert.Equal(t, before, port.writes)
}

func TestGetElementsForStory_OrderedByElementID(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedStories(t, s, "s1", "s2")
	s.SetElementLinks(ctx, "Task_b", []string{"s1"}, ref("Task_b"))
	s.SetElementLinks(ctx, "Task_a", []string{"s1", "s2"}, ref("Task_a"))
	s.SetElementLinks(ctx, "Task_c", []string{"s2"}, ref("Task_c"))

	refs := s.GetElementsForStory("s1")
	require.Len(t, refs, 2)
	assert.Equal(t, "Task_a", refs[0].ID)
	assert.Equal(t, "Task_b", refs[1].ID)
	assert.Equal(t, 2, s.LinkedElementCount("s2"))
	assert.Equal(t, 0, s.LinkedElementCount("missing"))
}

func TestAllLinks_ReturnsDeepCopy(t *testing.T) {
	s, _ := newTestStore(t)
	seedStories(t, s, "s1")
	s.SetElementLinks(context.Background(), "Task_1", []string{"s1"}, ref("Task_1"))

	all := s.AllLinks()
	all["Task_1"].StoryIDs[0] = "tampered"

	assert.Equal(t, []string{"s1"}, s.GetElementLinks("Task_1"))
}

func TestStaleElementsAndPrune(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedStories(t, s, "s1")
	s.SetElementLinks(ctx, "Task_1", []string{"s1"}, ref("Task_1"))
	s.SetElementLinks(ctx, "Gone_1", []string{"s1"}, ref("Gone_1"))

	present := func(id string) bool { return id == "Task_1" }
	stale := s.StaleElements(present)
	require.Len(t, stale, 1)
	assert.Equal(t, "Gone_1", stale[0].ID)

	assert.Equal(t, 1, s.Prune(ctx, []string{"Gone_1", "never_linked"}))
	assert.Empty(t, s.StaleElements(present))
	assert.Equal(t, []string{"s1"}, s.GetElementLinks("Task_1"))
}

// ─── Scenario ────────────────────────────────────────────────────────────────

func TestScenario_LinkThenDeleteStory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.UpsertStory(ctx, Story{ID: "S1", Title: "Checkout"})

	s.SetElementLinks(ctx, "Task_1", []string{"S1"}, ref("Task_1"))
	assert.Equal(t, []string{"S1"}, s.GetElementLinks("Task_1"))

	s.DeleteStory(ctx, "S1")
	assert.Empty(t, s.GetElementLinks("Task_1"))
	_, present := s.AllLinks()["Task_1"]
	assert.False(t, present)
}

// ─── Invariants under random operation sequences ────────────────────────────

func TestInvariants_RandomSequences(t *testing.T) {
	storyIDs := []string{"s0", "s1", "s2", "s3"}
	elementIDs := []string{"e0", "e1", "e2"}
	ctx := context.Background()

	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			s, _ := newTestStore(t)

			for step := 0; step < 200; step++ {
				story := storyIDs[rng.Intn(len(storyIDs))]
				element := elementIDs[rng.Intn(len(elementIDs))]
				switch rng.Intn(4) {
				case 0:
					s.UpsertStory(ctx, Story{ID: story, Title: story})
				case 1:
					s.DeleteStory(ctx, story)
				case 2:
					var set []string
					for _, id := range storyIDs {
						if rng.Intn(2) == 0 {
							set = append(set, id)
						}
					}
					s.SetElementLinks(ctx, element, set, ref(element))
				case 3:
					s.Unlink(ctx, story, element)
				}
				assertInvariants(t, s)
			}
		})
	}
}

// ─── Whole-state operations ─────────────────────────────────────────────────

func TestDiagram(t *testing.T) {
	s, port := newTestStore(t)

	_, ok := s.Diagram()
	assert.False(t, ok)

	s.SetDiagram(context.Background(), "<definitions/>")
	xml, ok := s.Diagram()
	require.True(t, ok)
	assert.Equal(t, "<definitions/>", xml)
	require.NotNil(t, port.stored.BpmnXML)
	assert.Equal(t, "<definitions/>", *port.stored.BpmnXML)
}

func TestReplace_RepairsIncomingState(t *testing.T) {
	s, _ := newTestStore(t)
	incoming := &State{
		UserStories: []Story{{ID: "a", Title: "A"}},
		ElementLinks: map[string]Link{
			"Task_1": {StoryIDs: []string{"a", "ghost"}},
			"Task_2": {StoryIDs: []string{"ghost"}},
		},
	}

	s.Replace(context.Background(), incoming)

	assert.Equal(t, []string{"a"}, s.GetElementLinks("Task_1"))
	assert.Len(t, s.AllLinks(), 1)
	assert.Equal(t, []string{"a", "ghost"}, incoming.ElementLinks["Task_1"].StoryIDs, "caller's value is untouched")
}

func TestClear(t *testing.T) {
	s, port := newTestStore(t)
	seedStories(t, s, "a")
	s.SetDiagram(context.Background(), "<x/>")

	s.Clear(context.Background())

	assert.Empty(t, s.ListStories())
	_, ok := s.Diagram()
	assert.False(t, ok)
	assert.Empty(t, port.stored.UserStories)
}

func TestSnapshot_IsIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	seedStories(t, s, "a")

	snap := s.Snapshot()
	snap.UserStories[0].Title = "changed"

	got, _ := s.GetStory("a")
	assert.Equal(t, "Story a", got.Title)
}

// ─── Write-through failures ─────────────────────────────────────────────────

func TestPersistFailure_KeepsMemoryAndRecovers(t *testing.T) {
	s, port := newTestStore(t)
	ctx := context.Background()
	port.failing = errors.New("disk full")

	s.UpsertStory(ctx, Story{ID: "a", Title: "A"})

	_, ok := s.GetStory("a")
	assert.True(t, ok, "in-memory state survives a failed write")
	require.Error(t, s.LastPersistError())
	assert.True(t, apperr.Is(s.LastPersistError(), apperr.KindPersistence))

	port.failing = nil
	s.UpsertStory(ctx, Story{ID: "b", Title: "B"})
	assert.NoError(t, s.LastPersistError())
	assert.Len(t, port.stored.UserStories, 2, "later write carries the earlier change")
}

func TestNewStore_NilPortIsMemoryOnly(t *testing.T) {
	s := NewStore(nil, nil, Options{})
	s.UpsertStory(context.Background(), Story{ID: "a", Title: "A"})
	assert.Len(t, s.ListStories(), 1)
	assert.NoError(t, s.LastPersistError())
}
