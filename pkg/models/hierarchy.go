package models

import (
	"fmt"
	"sync"
)

// Hierarchy is the full work-breakdown tree for one project idea.
// It is stored as a flat table keyed by node ID plus a derived
// parent-to-children index, so replacing a subtree is an index update
// rather than a structural graph edit.
//
// A Hierarchy is single-writer: only the currently running
// build/validate/rework cycle for a hierarchy may mutate it. Concurrent
// read-only access is permitted.
type Hierarchy struct {
	// ID identifies this hierarchy across save/load cycles.
	ID string

	mu       sync.RWMutex
	nodes    map[string]*HierarchyNode
	order    []string            // insertion order, parents before children
	children map[string][]string // parent ID -> ordered child IDs
}

// NewHierarchy creates an empty hierarchy with the given ID.
func NewHierarchy(id string) *Hierarchy {
	return &Hierarchy{
		ID:       id,
		nodes:    make(map[string]*HierarchyNode),
		children: make(map[string][]string),
	}
}

// NewHierarchyFromNodes rebuilds a hierarchy from a flat node list,
// for example after loading from the persistence store. Nodes must be
// ordered parents-before-children.
func NewHierarchyFromNodes(id string, nodes []*HierarchyNode) (*Hierarchy, error) {
	h := NewHierarchy(id)
	for _, n := range nodes {
		if err := h.Add(n); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n.ID, err)
		}
	}
	return h, nil
}

// Add inserts a node, enforcing the structural invariants:
// unique ID, valid level, and a parent exactly one level up
// (roots have no parent and must be level 1).
func (h *Hierarchy) Add(n *HierarchyNode) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n.ID == "" {
		return fmt.Errorf("node has empty id")
	}
	if _, exists := h.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate node id %s", n.ID)
	}
	if !n.Level.Valid() {
		return fmt.Errorf("node %s has invalid level %d", n.ID, n.Level)
	}
	if n.ParentID == "" {
		if n.Level != LevelInitiative {
			return fmt.Errorf("node %s at level %s has no parent", n.ID, n.Level)
		}
	} else {
		parent, ok := h.nodes[n.ParentID]
		if !ok {
			return fmt.Errorf("node %s references unknown parent %s", n.ID, n.ParentID)
		}
		if parent.Level+1 != n.Level {
			return fmt.Errorf("node %s at level %s under parent at level %s", n.ID, n.Level, parent.Level)
		}
	}

	h.nodes[n.ID] = n
	h.order = append(h.order, n.ID)
	if n.ParentID != "" {
		h.children[n.ParentID] = append(h.children[n.ParentID], n.ID)
	}
	return nil
}

// Node returns the node with the given ID, or nil if not found.
func (h *Hierarchy) Node(id string) *HierarchyNode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.nodes[id]
}

// Children returns the ordered child IDs of a node.
func (h *Hierarchy) Children(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	kids := h.children[id]
	out := make([]string, len(kids))
	copy(out, kids)
	return out
}

// Roots returns the IDs of all level-1 nodes in insertion order.
func (h *Hierarchy) Roots() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var roots []string
	for _, id := range h.order {
		if h.nodes[id].ParentID == "" {
			roots = append(roots, id)
		}
	}
	return roots
}

// Nodes returns all nodes in insertion order (parents before children).
func (h *Hierarchy) Nodes() []*HierarchyNode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*HierarchyNode, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.nodes[id])
	}
	return out
}

// NodesAtLevel returns all nodes at the given level in insertion order.
func (h *Hierarchy) NodesAtLevel(level Level) []*HierarchyNode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*HierarchyNode
	for _, id := range h.order {
		if h.nodes[id].Level == level {
			out = append(out, h.nodes[id])
		}
	}
	return out
}

// Len returns the number of nodes in the hierarchy.
func (h *Hierarchy) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// Subtree returns the IDs of all descendants of the given node,
// not including the node itself, in depth-first order.
func (h *Hierarchy) Subtree(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subtreeLocked(id)
}

func (h *Hierarchy) subtreeLocked(id string) []string {
	var out []string
	for _, child := range h.children[id] {
		out = append(out, child)
		out = append(out, h.subtreeLocked(child)...)
	}
	return out
}

// PruneSubtree removes all descendants of the given node, keeping the
// node itself. This is how rework replaces a failing subtree: prune,
// then re-add regenerated children.
func (h *Hierarchy) PruneSubtree(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	doomed := h.subtreeLocked(id)
	if len(doomed) == 0 {
		return
	}
	gone := make(map[string]bool, len(doomed))
	for _, d := range doomed {
		gone[d] = true
		delete(h.nodes, d)
		delete(h.children, d)
	}
	delete(h.children, id)

	kept := h.order[:0]
	for _, oid := range h.order {
		if !gone[oid] {
			kept = append(kept, oid)
		}
	}
	h.order = kept
}

// Clone returns a deep copy of the hierarchy. Node structs are copied,
// so mutations of the clone never affect the original.
func (h *Hierarchy) Clone() *Hierarchy {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c := NewHierarchy(h.ID)
	for _, id := range h.order {
		n := *h.nodes[id]
		c.nodes[n.ID] = &n
		c.order = append(c.order, n.ID)
		if n.ParentID != "" {
			c.children[n.ParentID] = append(c.children[n.ParentID], n.ID)
		}
	}
	return c
}

// Validate checks the structural invariants across the whole tree:
// unique IDs (guaranteed by the table), exactly one parent at level-1
// offset for every non-root, no cycles, and no skipped levels.
// A violation here is a defect in the producer, not a quality failure.
func (h *Hierarchy) Validate() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range h.order {
		n := h.nodes[id]
		if !n.Level.Valid() {
			return fmt.Errorf("node %s: invalid level %d", id, n.Level)
		}
		if n.ParentID == "" {
			if n.Level != LevelInitiative {
				return fmt.Errorf("node %s: orphaned at level %s", id, n.Level)
			}
			continue
		}
		parent, ok := h.nodes[n.ParentID]
		if !ok {
			return fmt.Errorf("node %s: parent %s not in hierarchy", id, n.ParentID)
		}
		if parent.Level+1 != n.Level {
			return fmt.Errorf("node %s: level %s does not follow parent level %s", id, n.Level, parent.Level)
		}
	}

	// Walking parent links from every node must terminate at a root.
	for _, id := range h.order {
		seen := make(map[string]bool)
		cur := h.nodes[id]
		for cur.ParentID != "" {
			if seen[cur.ID] {
				return fmt.Errorf("cycle detected through node %s", cur.ID)
			}
			seen[cur.ID] = true
			next, ok := h.nodes[cur.ParentID]
			if !ok {
				return fmt.Errorf("node %s: parent %s not in hierarchy", cur.ID, cur.ParentID)
			}
			cur = next
		}
	}
	return nil
}
