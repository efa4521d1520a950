package linkage

import (
	"context"
	"slices"

	"go.uber.org/zap"
)

// LoadReport describes what Load found in storage.
type LoadReport struct {
	// Found is true when the persister held a state blob.
	Found bool
	// Recovered is true when the stored state could not be read or decoded
	// and an empty state was used instead.
	Recovered bool
	// Err is the read/decode failure behind Recovered.
	Err error
	// Repairs counts invariant violations fixed while loading.
	Repairs int
}

// Load reads the session state from port and returns a Store over it.
//
// Load never fails: unreadable or malformed state is replaced by an empty
// one, and a state that decodes but breaks the link invariants is
// repaired.
func Load(ctx context.Context, port Persister, opts Options) (*Store, LoadReport) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var report LoadReport
	st, err := port.Read(ctx)
	switch {
	case err != nil:
		report.Recovered = true
		report.Err = err
		log.Warn("stored session unreadable; starting empty",
			zap.String("backend", opts.Backend),
			zap.Error(err),
		)
		st = NewState()
	case st == nil:
		st = NewState()
	default:
		report.Found = true
	}

	report.Repairs = Repair(st)
	if report.Repairs > 0 {
		log.Warn("repaired stored session",
			zap.String("backend", opts.Backend),
			zap.Int("repairs", report.Repairs),
		)
	}

	return NewStore(st, port, opts), report
}

// Repair normalizes st in place so both link invariants hold, and returns
// how many violations it fixed. Nil collections become empty, duplicate
// story ids collapse (first wins), story ids of missing stories leave
// every link set, empty link sets are removed, and link snapshots get
// their element id filled in.
func Repair(st *State) int {
	fixes := 0
	if st.UserStories == nil {
		st.UserStories = []Story{}
	}
	if st.ElementLinks == nil {
		st.ElementLinks = map[string]Link{}
	}

	known := make(map[string]bool, len(st.UserStories))
	stories := st.UserStories[:0]
	for _, story := range st.UserStories {
		if story.ID == "" || known[story.ID] {
			fixes++
			continue
		}
		known[story.ID] = true
		stories = append(stories, story)
	}
	st.UserStories = stories

	for elementID, link := range st.ElementLinks {
		ids := make([]string, 0, len(link.StoryIDs))
		for _, id := range link.StoryIDs {
			if !known[id] || slices.Contains(ids, id) {
				fixes++
				continue
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			if len(link.StoryIDs) == 0 {
				fixes++
			}
			delete(st.ElementLinks, elementID)
			continue
		}
		link.StoryIDs = ids
		if link.Element.ID == "" {
			link.Element.ID = elementID
		}
		st.ElementLinks[elementID] = link
	}
	return fixes
}
