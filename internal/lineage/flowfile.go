package lineage

import (
	"sync"

	"github.com/sanspareilsmyn/lineagelens/internal/model"
)

// ActiveFlowFile is the in-memory lineage node for one flow file. It
// implements model.FlowFile. All mutation happens through the Cache;
// readers may race with writers and get a slightly stale view, which
// callers on the stats side treat as best effort.
type ActiveFlowFile struct {
	id string

	mu        sync.RWMutex
	feedName  string
	root      *ActiveFlowFile
	parents   []*ActiveFlowFile
	parentIDs map[string]struct{}
	lastEvent *model.ProvenanceEvent
	complete  bool
}

func newActiveFlowFile(id string) *ActiveFlowFile {
	ff := &ActiveFlowFile{
		id:        id,
		parentIDs: make(map[string]struct{}),
	}
	ff.root = ff
	return ff
}

// ID returns the flow file identifier.
func (ff *ActiveFlowFile) ID() string { return ff.id }

// FeedName returns the feed this flow file belongs to, or "" if no
// event has attributed it yet.
func (ff *ActiveFlowFile) FeedName() string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.feedName
}

// RootFlowFile returns the root ancestor of this flow file's lineage
// tree. A flow file with no parents is its own root.
func (ff *ActiveFlowFile) RootFlowFile() model.FlowFile {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.root
}

// Parents returns the direct parents of this flow file. The returned
// slice is a copy; the underlying nodes are shared and live.
func (ff *ActiveFlowFile) Parents() []model.FlowFile {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	parents := make([]model.FlowFile, len(ff.parents))
	for i, p := range ff.parents {
		parents[i] = p
	}
	return parents
}

// HasParents reports whether this flow file was produced by fan-out
// or fan-in from other flow files.
func (ff *ActiveFlowFile) HasParents() bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return len(ff.parents) > 0
}

// IsComplete reports whether all events expected for this flow file
// have arrived.
func (ff *ActiveFlowFile) IsComplete() bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.complete
}

// LastEvent returns the most recent event observed for this flow file.
func (ff *ActiveFlowFile) LastEvent() *model.ProvenanceEvent {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.lastEvent
}

func (ff *ActiveFlowFile) addParent(parent *ActiveFlowFile) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if _, linked := ff.parentIDs[parent.id]; linked {
		return
	}
	ff.parentIDs[parent.id] = struct{}{}
	ff.parents = append(ff.parents, parent)
	// Fan-in keeps the first parent's root; the tree is identified by
	// whichever root the flow file joined first.
	if ff.root == ff {
		ff.root = parent.rootLockedCopy()
	}
}

func (ff *ActiveFlowFile) rootLockedCopy() *ActiveFlowFile {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.root
}

func (ff *ActiveFlowFile) observe(event *model.ProvenanceEvent) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.feedName == "" && event.FeedName != "" {
		ff.feedName = event.FeedName
	}
	ff.lastEvent = event
	if event.EndingEvent {
		ff.complete = true
	}
}
