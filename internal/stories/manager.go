// Package stories mediates between the editing surface and the linkage
// store: it owns drafts, validation, id generation and the highlight side
// effect of every link change.
package stories

import (
	"context"
	"strings"

	"github.com/HendryAvila/storymap/internal/apperr"
	"github.com/HendryAvila/storymap/internal/linkage"
	"github.com/HendryAvila/storymap/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IDPrefix starts every generated story id.
const IDPrefix = "story_"

// Highlighter is the slice of the diagram engine the manager drives.
type Highlighter interface {
	SetHighlight(elementID string, on bool)
}

// Draft is a detached, editable copy of a story. Drafts are values, so
// editing one never touches stored state until Commit.
type Draft struct {
	ID                 string
	Title              string `validate:"required"`
	Description        string
	AcceptanceCriteria string
	IsNew              bool
}

// Options configures a Manager.
type Options struct {
	// NewID overrides id generation. Defaults to NewID.
	NewID   func() string
	Logger  *zap.Logger
	Metrics metrics.Recorder
}

// Manager runs the story lifecycle against a linkage store.
type Manager struct {
	store    *linkage.Store
	engine   Highlighter
	newID    func() string
	validate *validator.Validate
	log      *zap.Logger
	metrics  metrics.Recorder
}

// NewManager creates a manager over store that highlights through engine.
func NewManager(store *linkage.Store, engine Highlighter, opts Options) *Manager {
	if opts.NewID == nil {
		opts.NewID = NewID
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:    store,
		engine:   engine,
		newID:    opts.NewID,
		validate: validator.New(),
		log:      log,
		metrics:  metrics.OrNop(opts.Metrics),
	}
}

// NewID returns a time-ordered unique story id.
func NewID() string {
	return IDPrefix + uuid.Must(uuid.NewV7()).String()
}

// StartCreate returns an empty draft with a fresh id. Nothing is stored.
func (m *Manager) StartCreate() Draft {
	return Draft{ID: m.newID(), IsNew: true}
}

// StartEdit returns a draft copy of the stored story.
func (m *Manager) StartEdit(id string) (Draft, error) {
	s, ok := m.store.GetStory(id)
	if !ok {
		return Draft{}, apperr.NotFound("edit story", "story "+id)
	}
	return Draft{
		ID:                 s.ID,
		Title:              s.Title,
		Description:        s.Description,
		AcceptanceCriteria: s.AcceptanceCriteria,
	}, nil
}

// Commit trims the draft and stores it. An empty title fails with a
// validation error and leaves the store unchanged.
func (m *Manager) Commit(ctx context.Context, d Draft) (linkage.Story, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.AcceptanceCriteria = strings.TrimSpace(d.AcceptanceCriteria)

	if err := m.validate.Struct(d); err != nil {
		return linkage.Story{}, apperr.Validation("save story", validationMessage(err))
	}
	if d.ID == "" {
		d.ID = m.newID()
	}

	story := linkage.Story{
		ID:                 d.ID,
		Title:              d.Title,
		Description:        d.Description,
		AcceptanceCriteria: d.AcceptanceCriteria,
	}
	m.store.UpsertStory(ctx, story)
	m.log.Debug("story saved", zap.String("id", story.ID), zap.Bool("new", d.IsNew))
	return story, nil
}

// Discard drops a draft. It exists so every editing path ends in an
// explicit call; it has no side effect.
func (m *Manager) Discard(Draft) {}

// Remove deletes a story and clears the highlight of every element left
// without links.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if _, ok := m.store.GetStory(id); !ok {
		return apperr.NotFound("delete story", "story "+id)
	}

	// Read before the cascade erases the link state.
	linked := m.store.GetElementsForStory(id)
	m.store.DeleteStory(ctx, id)

	for _, ref := range linked {
		if len(m.store.GetElementLinks(ref.ID)) == 0 {
			m.highlight(ref.ID, false)
		}
	}
	m.log.Debug("story deleted", zap.String("id", id), zap.Int("elements", len(linked)))
	return nil
}

// UpdateElementLinks replaces the link set of elementID and returns the
// stored set. The highlight follows the stored set, so ids of unknown
// stories never light an element.
func (m *Manager) UpdateElementLinks(ctx context.Context, elementID string, storyIDs []string, ref linkage.ElementRef) ([]string, error) {
	if strings.TrimSpace(elementID) == "" {
		return nil, apperr.Validation("link element", "element id is required")
	}
	m.store.SetElementLinks(ctx, elementID, storyIDs, ref)
	linked := m.store.GetElementLinks(elementID)
	m.highlight(elementID, len(linked) > 0)
	return linked, nil
}

// UnlinkOne removes a single story from an element.
func (m *Manager) UnlinkOne(ctx context.Context, storyID, elementID string) {
	m.store.Unlink(ctx, storyID, elementID)
	if len(m.store.GetElementLinks(elementID)) == 0 {
		m.highlight(elementID, false)
	}
}

func (m *Manager) highlight(elementID string, on bool) {
	m.engine.SetHighlight(elementID, on)
	m.metrics.Highlight(on)
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
