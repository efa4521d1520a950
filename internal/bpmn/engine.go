// Package bpmn is a headless diagram engine: it holds one BPMN 2.0
// document, indexes its model elements by id and tracks which of them are
// highlighted. Rendering is left to whatever client displays the XML.
package bpmn

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/HendryAvila/storymap/internal/linkage"
)

// ModelNamespace is the BPMN 2.0 semantic model namespace.
const ModelNamespace = "http://www.omg.org/spec/BPMN/20100524/MODEL"

// ErrNoDiagram is returned by ExportXML before any diagram was imported.
var ErrNoDiagram = errors.New("no diagram loaded")

// Engine holds the live diagram. Safe for concurrent use.
type Engine struct {
	mu          sync.RWMutex
	xml         string
	loaded      bool
	elements    []linkage.ElementRef
	index       map[string]int
	highlighted map[string]bool
}

// NewEngine returns an engine with no diagram loaded.
func NewEngine() *Engine {
	return &Engine{
		index:       map[string]int{},
		highlighted: map[string]bool{},
	}
}

// ImportXML replaces the live diagram. On failure the previous diagram,
// its elements and its highlights are left untouched. A successful
// import clears every highlight.
func (e *Engine) ImportXML(ctx context.Context, doc string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	elements, err := parse(doc)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	index := make(map[string]int, len(elements))
	for i, el := range elements {
		index[el.ID] = i
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.xml = doc
	e.loaded = true
	e.elements = elements
	e.index = index
	e.highlighted = map[string]bool{}
	return nil
}

// ExportXML returns the live diagram document.
func (e *Engine) ExportXML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.loaded {
		return "", ErrNoDiagram
	}
	return e.xml, nil
}

// SetHighlight marks or unmarks an element. Unknown ids are ignored.
func (e *Engine) SetHighlight(elementID string, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.index[elementID]; !ok {
		return
	}
	if on {
		e.highlighted[elementID] = true
	} else {
		delete(e.highlighted, elementID)
	}
}

// IsHighlighted reports whether elementID is currently marked.
func (e *Engine) IsHighlighted(elementID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.highlighted[elementID]
}

// Highlighted returns the marked element ids, sorted.
func (e *Engine) Highlighted() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.highlighted))
	for id := range e.highlighted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListElements returns every model element in document order.
func (e *Engine) ListElements() []linkage.ElementRef {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]linkage.ElementRef, len(e.elements))
	copy(out, e.elements)
	return out
}

// GetElement looks up a model element by id.
func (e *Engine) GetElement(id string) (linkage.ElementRef, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i, ok := e.index[id]
	if !ok {
		return linkage.ElementRef{}, false
	}
	return e.elements[i], true
}

// parse checks that doc is a BPMN definitions document and collects every
// model element that carries an id.
func parse(doc string) ([]linkage.ElementRef, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))

	var (
		elements []linkage.ElementRef
		seen     = map[string]bool{}
		depth    int
		rooted   bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing diagram: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if rooted {
					return nil, errors.New("parsing diagram: multiple root elements")
				}
				if t.Name.Space != ModelNamespace || t.Name.Local != "definitions" {
					return nil, fmt.Errorf("parsing diagram: root element %q is not BPMN definitions", t.Name.Local)
				}
				rooted = true
			} else if t.Name.Space == ModelNamespace {
				id := attr(t, "id")
				if id != "" {
					if seen[id] {
						return nil, fmt.Errorf("parsing diagram: duplicate element id %q", id)
					}
					seen[id] = true
					elements = append(elements, linkage.ElementRef{
						ID:   id,
						Name: attr(t, "name"),
						Type: kindOf(t.Name.Local),
					})
				}
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}

	if !rooted {
		return nil, errors.New("parsing diagram: document is empty")
	}
	return elements, nil
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// kindOf maps a model element's local name to its type tag, e.g.
// "userTask" to "bpmn:UserTask".
func kindOf(local string) linkage.Kind {
	r, size := utf8.DecodeRuneInString(local)
	if r == utf8.RuneError {
		return linkage.KindUnknown
	}
	return linkage.Kind("bpmn:" + string(unicode.ToUpper(r)) + local[size:])
}
