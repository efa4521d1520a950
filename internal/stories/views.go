package stories

import "github.com/HendryAvila/storymap/internal/linkage"

// LinkedElement is a cached element ref with its display label.
type LinkedElement struct {
	linkage.ElementRef
	Label string `json:"label"`
}

// StoryView is a story together with the elements it is linked to.
type StoryView struct {
	linkage.Story
	Elements []LinkedElement `json:"linkedElements"`
}

// View returns the story card for id.
func (m *Manager) View(id string) (StoryView, bool) {
	s, ok := m.store.GetStory(id)
	if !ok {
		return StoryView{}, false
	}
	return StoryView{Story: s, Elements: m.linkedElements(id)}, true
}

// Views returns every story card in insertion order.
func (m *Manager) Views() []StoryView {
	all := m.store.ListStories()
	views := make([]StoryView, 0, len(all))
	for _, s := range all {
		views = append(views, StoryView{Story: s, Elements: m.linkedElements(s.ID)})
	}
	return views
}

// ElementStories returns the stories linked to elementID in story
// insertion order.
func (m *Manager) ElementStories(elementID string) []linkage.Story {
	var out []linkage.Story
	for _, s := range m.store.ListStories() {
		if m.store.IsLinked(s.ID, elementID) {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) linkedElements(storyID string) []LinkedElement {
	refs := m.store.GetElementsForStory(storyID)
	out := make([]LinkedElement, 0, len(refs))
	for _, ref := range refs {
		out = append(out, LinkedElement{ElementRef: ref, Label: ref.Type.Label()})
	}
	return out
}
