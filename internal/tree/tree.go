// Package tree defines the per-school spell DAG, its JSON form, graph
// sanity checks and the builders that produce it from a catalog.
package tree

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Version is the tree document version written by the builders.
const Version = 2

// Node is one spell in a school tree. Tier is depth from the root, root=1.
// Prerequisites lists hex form IDs that gate the node; Children mirrors the
// forward edges for UI rendering.
type Node struct {
	FormID        string   `json:"formId"`
	PersistentID  string   `json:"persistentId,omitempty"`
	Name          string   `json:"name,omitempty"`
	SkillLevel    string   `json:"skillLevel,omitempty"`
	Tier          int      `json:"tier"`
	Children      []string `json:"children"`
	Prerequisites []string `json:"prerequisites"`
}

// SchoolTree is one school's DAG: a single root plus its nodes.
type SchoolTree struct {
	Root  string  `json:"root"`
	Nodes []*Node `json:"nodes"`
}

// Tree is the full per-school document.
type Tree struct {
	Version int                    `json:"version"`
	Schools map[string]*SchoolTree `json:"schools"`
}

// New returns an empty tree at the current version.
func New() *Tree {
	return &Tree{Version: Version, Schools: make(map[string]*SchoolTree)}
}

// Load reads a tree JSON file.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", err)
	}
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tree %s: %w", path, err)
	}
	if t.Schools == nil {
		t.Schools = make(map[string]*SchoolTree)
	}
	return &t, nil
}

// Save writes the tree as indented JSON.
func (t *Tree) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tree: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write tree: %w", err)
	}
	return nil
}

// NodeCount sums nodes across schools.
func (t *Tree) NodeCount() int {
	n := 0
	for _, s := range t.Schools {
		n += len(s.Nodes)
	}
	return n
}

// Find returns the node with the given form ID, nil if absent.
func (s *SchoolTree) Find(formID string) *Node {
	for _, n := range s.Nodes {
		if n.FormID == formID {
			return n
		}
	}
	return nil
}

// index maps form ID to node for the school.
func (s *SchoolTree) index() map[string]*Node {
	m := make(map[string]*Node, len(s.Nodes))
	for _, n := range s.Nodes {
		m[n.FormID] = n
	}
	return m
}

// RebuildChildren recomputes every node's Children from Prerequisites, in a
// stable order. Children are derived data; prerequisites are authoritative.
func (s *SchoolTree) RebuildChildren() {
	byID := s.index()
	for _, n := range s.Nodes {
		n.Children = n.Children[:0]
	}
	for _, n := range s.Nodes {
		for _, pre := range n.Prerequisites {
			if parent, ok := byID[pre]; ok {
				parent.Children = append(parent.Children, n.FormID)
			}
		}
	}
	for _, n := range s.Nodes {
		sort.Strings(n.Children)
		if n.Children == nil {
			n.Children = []string{}
		}
	}
}

// TopoSort orders the nodes so every prerequisite precedes its dependents.
// The second return is false when the prerequisite graph has a cycle.
func (s *SchoolTree) TopoSort() ([]*Node, bool) {
	byID := s.index()
	indeg := make(map[string]int, len(s.Nodes))
	for _, n := range s.Nodes {
		for _, pre := range n.Prerequisites {
			if _, ok := byID[pre]; ok {
				indeg[n.FormID]++
			}
		}
	}
	var queue []*Node
	for _, n := range s.Nodes {
		if indeg[n.FormID] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].FormID < queue[j].FormID })

	var order []*Node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, m := range s.Nodes {
			for _, pre := range m.Prerequisites {
				if pre == n.FormID {
					indeg[m.FormID]--
					if indeg[m.FormID] == 0 {
						queue = append(queue, m)
					}
				}
			}
		}
	}
	return order, len(order) == len(s.Nodes)
}

// DropCycles removes prerequisite edges that close a cycle, preferring to
// cut the edge into the node discovered last. Returns the number of edges
// removed.
func (s *SchoolTree) DropCycles() int {
	removed := 0
	for {
		order, ok := s.TopoSort()
		if ok {
			return removed
		}
		ordered := make(map[string]bool, len(order))
		for _, n := range order {
			ordered[n.FormID] = true
		}
		// Every node outside the partial order sits on or behind a cycle.
		// Cut its first in-cycle prerequisite edge and retry.
		cut := false
		for _, n := range s.Nodes {
			if ordered[n.FormID] {
				continue
			}
			for i, pre := range n.Prerequisites {
				if !ordered[pre] {
					n.Prerequisites = append(n.Prerequisites[:i], n.Prerequisites[i+1:]...)
					removed++
					cut = true
					break
				}
			}
			if cut {
				break
			}
		}
		if !cut {
			return removed
		}
	}
}

// Reachable returns the set of nodes reachable from the root through
// children edges.
func (s *SchoolTree) Reachable() map[string]bool {
	byID := s.index()
	seen := make(map[string]bool)
	stack := []string{s.Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		n, ok := byID[id]
		if !ok {
			continue
		}
		seen[id] = true
		stack = append(stack, n.Children...)
	}
	return seen
}

// AttachUnreachable links every node the root cannot reach directly under
// the root, keeping the single-root invariant. Tiers are recomputed after.
func (s *SchoolTree) AttachUnreachable() int {
	if s.Root == "" || len(s.Nodes) == 0 {
		return 0
	}
	attached := 0
	for {
		seen := s.Reachable()
		fixed := false
		for _, n := range s.Nodes {
			if seen[n.FormID] || n.FormID == s.Root {
				continue
			}
			if len(n.Prerequisites) == 0 {
				n.Prerequisites = []string{s.Root}
				attached++
				fixed = true
			}
		}
		if !fixed {
			// Remaining unreachable nodes have prerequisites pointing into
			// another unreachable island; re-root the cheapest one.
			reseen := s.Reachable()
			island := false
			for _, n := range s.Nodes {
				if !reseen[n.FormID] && n.FormID != s.Root {
					n.Prerequisites = []string{s.Root}
					attached++
					island = true
					break
				}
			}
			if !island {
				break
			}
		}
		s.RebuildChildren()
	}
	return attached
}

// AssignTiers sets each node's tier to its depth from the root, root=1.
// Call after the graph is final.
func (s *SchoolTree) AssignTiers() {
	order, _ := s.TopoSort()
	byID := s.index()
	for _, n := range order {
		tier := 1
		for _, pre := range n.Prerequisites {
			if parent, ok := byID[pre]; ok && parent.Tier >= tier {
				tier = parent.Tier + 1
			}
		}
		n.Tier = tier
	}
}
