package linkage

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/HendryAvila/storymap/internal/apperr"
	"github.com/HendryAvila/storymap/internal/metrics"
	"go.uber.org/zap"
)

// Options configures a Store.
type Options struct {
	// Backend names the persister in logs and metrics.
	Backend string
	// WriteTimeout bounds each write-through. Zero means no extra bound.
	WriteTimeout time.Duration
	Logger       *zap.Logger
	Metrics      metrics.Recorder
}

// Store is the in-memory owner of the session state. Every mutation is
// applied atomically and then written through to the persister.
//
// A failed write never rolls back the in-memory change: the session keeps
// running in memory and the failure is kept in LastPersistError until a
// later write succeeds.
type Store struct {
	mu      sync.RWMutex
	state   *State
	port    Persister
	opts    Options
	log     *zap.Logger
	metrics metrics.Recorder
	lastErr error
}

// NewStore wraps st (nil means empty) with write-through to port. A nil
// port keeps the store memory-only.
func NewStore(st *State, port Persister, opts Options) *Store {
	if st == nil {
		st = NewState()
	}
	Repair(st)

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Backend == "" {
		opts.Backend = "unknown"
	}

	return &Store{
		state:   st,
		port:    port,
		opts:    opts,
		log:     log,
		metrics: metrics.OrNop(opts.Metrics),
	}
}

// ─── Stories ────────────────────────────────────────────────────────────────

// ListStories returns all stories in insertion order.
func (s *Store) ListStories() []Story {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.UserStories)
}

// GetStory returns the story with the given id.
func (s *Store) GetStory(id string) (Story, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.storyIndex(id); i >= 0 {
		return s.state.UserStories[i], true
	}
	return Story{}, false
}

// UpsertStory inserts story, or replaces the stored story with the same id
// in place. Field contents are not validated here.
func (s *Store) UpsertStory(ctx context.Context, story Story) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.storyIndex(story.ID); i >= 0 {
		s.state.UserStories[i] = story
	} else {
		s.state.UserStories = append(s.state.UserStories, story)
	}
	s.persist(ctx)
}

// DeleteStory removes the story and cascades through the link relation:
// the id leaves every element's set, and sets left empty are removed.
// Deleting an unknown id is a no-op.
func (s *Store) DeleteStory(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.storyIndex(id)
	if i < 0 {
		return
	}
	s.state.UserStories = slices.Delete(s.state.UserStories, i, i+1)

	for elementID, link := range s.state.ElementLinks {
		if !slices.Contains(link.StoryIDs, id) {
			continue
		}
		link.StoryIDs = slices.DeleteFunc(link.StoryIDs, func(sid string) bool { return sid == id })
		s.putLink(elementID, link)
	}
	s.persist(ctx)
}

func (s *Store) storyIndex(id string) int {
	return slices.IndexFunc(s.state.UserStories, func(st Story) bool { return st.ID == id })
}

// ─── Links ──────────────────────────────────────────────────────────────────

// SetElementLinks replaces the full link set of elementID with storyIDs and
// refreshes the cached element snapshot. Duplicate ids collapse and ids of
// stories not in the store are dropped; an empty result removes the entry.
func (s *Store) SetElementLinks(ctx context.Context, elementID string, storyIDs []string, ref ElementRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(storyIDs))
	for _, id := range storyIDs {
		if slices.Contains(ids, id) || s.storyIndex(id) < 0 {
			continue
		}
		ids = append(ids, id)
	}

	ref.ID = elementID
	s.putLink(elementID, Link{StoryIDs: ids, Element: ref})
	s.persist(ctx)
}

// GetElementLinks returns the story ids linked to elementID. The result is
// never nil.
func (s *Store) GetElementLinks(elementID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.state.ElementLinks[elementID]
	if !ok {
		return []string{}
	}
	return slices.Clone(link.StoryIDs)
}

// IsLinked reports whether storyID is linked to elementID.
func (s *Store) IsLinked(storyID, elementID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.state.ElementLinks[elementID]
	return ok && slices.Contains(link.StoryIDs, storyID)
}

// GetElementsForStory returns the cached refs of every element linked to
// storyID, ordered by element id.
func (s *Store) GetElementsForStory(storyID string) []ElementRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []ElementRef
	for _, elementID := range s.sortedElementIDs() {
		link := s.state.ElementLinks[elementID]
		if slices.Contains(link.StoryIDs, storyID) {
			refs = append(refs, link.Element)
		}
	}
	return refs
}

// LinkedElementCount returns how many elements storyID is linked to.
func (s *Store) LinkedElementCount(storyID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, link := range s.state.ElementLinks {
		if slices.Contains(link.StoryIDs, storyID) {
			n++
		}
	}
	return n
}

// Unlink removes storyID from elementID's set only. Not linked is a no-op.
func (s *Store) Unlink(ctx context.Context, storyID, elementID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.state.ElementLinks[elementID]
	if !ok || !slices.Contains(link.StoryIDs, storyID) {
		return
	}
	link.StoryIDs = slices.DeleteFunc(link.StoryIDs, func(id string) bool { return id == storyID })
	s.putLink(elementID, link)
	s.persist(ctx)
}

// AllLinks returns a deep copy of the whole link relation.
func (s *Store) AllLinks() map[string]Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Link, len(s.state.ElementLinks))
	for id, link := range s.state.ElementLinks {
		out[id] = link.clone()
	}
	return out
}

// StaleElements returns the refs of linked elements for which present
// reports false, ordered by element id.
func (s *Store) StaleElements(present func(elementID string) bool) []ElementRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []ElementRef
	for _, elementID := range s.sortedElementIDs() {
		if !present(elementID) {
			stale = append(stale, s.state.ElementLinks[elementID].Element)
		}
	}
	return stale
}

// Prune removes the link entries of the given elements and returns how
// many existed.
func (s *Store) Prune(ctx context.Context, elementIDs []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range elementIDs {
		if _, ok := s.state.ElementLinks[id]; ok {
			delete(s.state.ElementLinks, id)
			n++
		}
	}
	if n > 0 {
		s.persist(ctx)
	}
	return n
}

// putLink stores link under elementID, or removes the key when the set is
// empty. Callers hold the write lock.
func (s *Store) putLink(elementID string, link Link) {
	if len(link.StoryIDs) == 0 {
		delete(s.state.ElementLinks, elementID)
		return
	}
	s.state.ElementLinks[elementID] = link
}

func (s *Store) sortedElementIDs() []string {
	ids := make([]string, 0, len(s.state.ElementLinks))
	for id := range s.state.ElementLinks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ─── Diagram blob and whole-state operations ────────────────────────────────

// Diagram returns the last saved diagram serialization, if any.
func (s *Store) Diagram() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.BpmnXML == nil {
		return "", false
	}
	return *s.state.BpmnXML, true
}

// SetDiagram records the diagram serialization.
func (s *Store) SetDiagram(ctx context.Context, xml string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.BpmnXML = &xml
	s.persist(ctx)
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Replace swaps in st (after repairing it) as the whole state.
func (s *Store) Replace(ctx context.Context, st *State) {
	if st == nil {
		st = NewState()
	}
	st = st.Clone()
	Repair(st)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.persist(ctx)
}

// Clear resets the store to an empty state.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = NewState()
	s.persist(ctx)
}

// LastPersistError returns the most recent write failure, or nil once a
// later write has succeeded.
func (s *Store) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// persist writes the current state through to the port. Callers hold the
// write lock.
func (s *Store) persist(ctx context.Context) {
	if s.port == nil {
		return
	}
	if s.opts.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.WriteTimeout)
		defer cancel()
	}

	err := s.port.Write(ctx, s.state)
	s.metrics.PersistWrite(s.opts.Backend, err)
	if err != nil {
		s.lastErr = apperr.Persistence("write session", err)
		s.log.Warn("session write failed; continuing in memory",
			zap.String("backend", s.opts.Backend),
			zap.Error(err),
		)
		return
	}
	s.lastErr = nil
}
