package lineage

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/lineagelens/internal/model"
)

// Cache tracks the live lineage graph of active flow files. It owns
// all graph mutation; the stats core only reads the nodes it hands out.
type Cache struct {
	logger *zap.Logger

	mu        sync.Mutex
	flowFiles map[string]*ActiveFlowFile
}

// NewCache creates an empty lineage cache.
func NewCache(logger *zap.Logger) *Cache {
	return &Cache{
		logger:    logger,
		flowFiles: make(map[string]*ActiveFlowFile),
	}
}

// Observe folds one event into the lineage graph: it gets-or-creates
// the node for the event's flow file, links any parents named by the
// event, records the event as the node's last event, marks the node
// complete if this is an ending event, and attaches the node to the
// event for downstream consumers.
func (c *Cache) Observe(event *model.ProvenanceEvent) *ActiveFlowFile {
	c.mu.Lock()
	node := c.getOrCreateLocked(event.FlowFileID)
	parents := make([]*ActiveFlowFile, 0, len(event.ParentIDs))
	for _, parentID := range event.ParentIDs {
		if parentID == event.FlowFileID {
			continue
		}
		parents = append(parents, c.getOrCreateLocked(parentID))
	}
	c.mu.Unlock()

	for _, parent := range parents {
		node.addParent(parent)
	}
	node.observe(event)
	event.FlowFile = node

	if event.EndingEvent {
		c.logger.Debug("Flow file completed",
			zap.String("flow_file", node.ID()),
			zap.Int("parents", len(node.Parents())),
		)
	}
	return node
}

// Get returns the node for a flow file id, or nil if never observed.
func (c *Cache) Get(id string) *ActiveFlowFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flowFiles[id]
}

// Len returns the number of tracked flow files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flowFiles)
}

// Remove drops a flow file from the cache. Nodes already linked as
// parents stay reachable from their children until those are removed.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flowFiles, id)
}

func (c *Cache) getOrCreateLocked(id string) *ActiveFlowFile {
	if ff, ok := c.flowFiles[id]; ok {
		return ff
	}
	ff := newActiveFlowFile(id)
	c.flowFiles[id] = ff
	return ff
}
