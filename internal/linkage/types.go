// Package linkage owns the session's story records and the many-to-many
// relation between stories and diagram elements.
//
// The relation is keyed by element id. Element ids come from an external
// diagram editor that can create, rename or delete elements without telling
// us, so each link entry carries a cached ElementRef snapshot taken the last
// time the links of that element were edited.
//
// Two invariants hold after every operation and after every load:
//   - an element key exists iff its story-id set is non-empty
//   - every story id in a link entry names a story present in the store
package linkage

import "context"

// Story is a user-authored requirement record.
type Story struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	AcceptanceCriteria string `json:"acceptanceCriteria"`
}

// ElementRef is a snapshot of a diagram element's identity and display
// metadata. It can go stale when the element changes outside a link edit.
type ElementRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type Kind   `json:"type"`
}

// Link is the value stored for one element key.
type Link struct {
	StoryIDs []string   `json:"storyIds"`
	Element  ElementRef `json:"elementData"`
}

// State is the whole persisted unit: stories, links and the opaque diagram
// blob. Its JSON form is the on-disk layout shared by every backend.
type State struct {
	UserStories  []Story         `json:"userStories"`
	BpmnXML      *string         `json:"bpmnXml"`
	ElementLinks map[string]Link `json:"elementLinks"`
}

// NewState returns an empty, fully initialized State.
func NewState() *State {
	return &State{
		UserStories:  []Story{},
		ElementLinks: map[string]Link{},
	}
}

// Clone returns a deep copy of st.
func (st *State) Clone() *State {
	out := &State{
		UserStories:  make([]Story, len(st.UserStories)),
		ElementLinks: make(map[string]Link, len(st.ElementLinks)),
	}
	copy(out.UserStories, st.UserStories)
	if st.BpmnXML != nil {
		xml := *st.BpmnXML
		out.BpmnXML = &xml
	}
	for id, link := range st.ElementLinks {
		out.ElementLinks[id] = link.clone()
	}
	return out
}

func (l Link) clone() Link {
	ids := make([]string, len(l.StoryIDs))
	copy(ids, l.StoryIDs)
	return Link{StoryIDs: ids, Element: l.Element}
}

// Persister is the durable storage port: a single blob, last write wins.
//
// Read returns (nil, nil) when nothing has been stored yet. Write must
// either store st completely or leave the previous blob in place, and must
// not retain st after returning.
type Persister interface {
	Read(ctx context.Context) (*State, error)
	Write(ctx context.Context, st *State) error
}
