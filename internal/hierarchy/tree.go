// Package hierarchy maintains the canonical entity tree: an arena of nodes
// keyed by entity name with attach/detach as the only mutation entry points,
// cycle rejection, and derived level and subordinate-count invariants.
package hierarchy

import (
	"fmt"
	"sort"

	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/model"
)

// Node is one entity's position in the tree. Children are kept in attach
// order. Level and SubordinateCount are derived and maintained by Attach.
type Node struct {
	Name             string
	Parent           string
	Children         []string
	Level            int
	SubordinateCount int
}

// Tree is an arena of nodes indexed by stable entity name. Parent references
// in source documents are free text and unverified, so every structural
// change goes through Attach, which rejects cycles outright.
type Tree struct {
	nodes map[string]*Node
	root  string
}

// New creates a tree containing only the distinguished root at level 0.
func New() *Tree {
	t := &Tree{
		nodes: make(map[string]*Node),
		root:  model.RootEntityName,
	}
	t.nodes[t.root] = &Node{Name: t.root}
	return t
}

// Build constructs a tree from a registry snapshot: every entity is inserted,
// then attached under its recorded parent (or the root when the parent is
// absent or unknown). Cycle-producing parent references are skipped; the
// offending entities stay under the root.
func Build(entities []*model.CanonicalEntity) *Tree {
	t := New()
	for _, e := range entities {
		t.Insert(e.Name)
	}
	// Attach in sorted order so construction is deterministic.
	names := make([]string, 0, len(entities))
	byName := make(map[string]*model.CanonicalEntity, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
		byName[e.Name] = e
	}
	sort.Strings(names)
	for _, name := range names {
		e := byName[name]
		if e.Name == t.root {
			continue
		}
		parent := e.ParentAgency
		if parent == "" || t.Node(parent) == nil {
			parent = t.root
		}
		// A stale parent reference can describe a cycle; the child falls
		// back to the root rather than guessing.
		if err := t.Attach(e.Name, parent); err != nil {
			_ = t.Attach(e.Name, t.root)
		}
	}
	return t
}

// Node returns the node for name, or nil.
func (t *Tree) Node(name string) *Node {
	return t.nodes[name]
}

// Root returns the distinguished root node.
func (t *Tree) Root() *Node {
	return t.nodes[t.root]
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Insert adds a node for name if not already present and returns it. New
// nodes start detached; the root is recognized by its fixed name and pinned
// at level 0.
func (t *Tree) Insert(name string) *Node {
	if n, ok := t.nodes[name]; ok {
		return n
	}
	n := &Node{Name: name}
	t.nodes[name] = n
	return n
}

// Attach makes child a child of parent. If child already appears in parent's
// ancestor chain the attach is rejected and the tree is left unchanged.
// Otherwise the child is detached from any prior parent, levels are
// propagated through its subtree, and subordinate counts are recomputed up
// both the old and new ancestor chains.
func (t *Tree) Attach(child, parent string) error {
	if child == parent {
		return fmt.Errorf("%w: %q cannot be its own parent", common.ErrCycle, child)
	}
	c, ok := t.nodes[child]
	if !ok {
		return fmt.Errorf("%w: child %q", common.ErrNotFound, child)
	}
	p, ok := t.nodes[parent]
	if !ok {
		return fmt.Errorf("%w: parent %q", common.ErrNotFound, parent)
	}
	if child == t.root {
		return fmt.Errorf("%w: root cannot be reattached", common.ErrCycle)
	}

	for anc := p; anc != nil; anc = t.nodes[anc.Parent] {
		if anc.Name == child {
			return fmt.Errorf("%w: %q is an ancestor of %q", common.ErrCycle, child, parent)
		}
		if anc.Parent == "" {
			break
		}
	}

	oldParent := c.Parent
	t.detach(c)

	c.Parent = p.Name
	p.Children = append(p.Children, c.Name)
	t.propagateLevels(c, p.Level+1)

	t.recountUp(oldParent)
	t.recountUp(p.Name)
	return nil
}

// detach removes the node from its current parent's child list. The node's
// own subtree is untouched.
func (t *Tree) detach(n *Node) {
	if n.Parent == "" {
		return
	}
	p := t.nodes[n.Parent]
	if p != nil {
		for i, name := range p.Children {
			if name == n.Name {
				p.Children = append(p.Children[:i], p.Children[i+1:]...)
				break
			}
		}
	}
	n.Parent = ""
}

// propagateLevels sets n.Level and recomputes the whole subtree depth-first:
// a child's level is always its parent's plus one.
func (t *Tree) propagateLevels(n *Node, level int) {
	n.Level = level
	for _, name := range n.Children {
		if child := t.nodes[name]; child != nil {
			t.propagateLevels(child, level+1)
		}
	}
}

// recountUp recomputes subordinate counts from name up through every
// ancestor to the root.
func (t *Tree) recountUp(name string) {
	for n := t.nodes[name]; n != nil; n = t.nodes[n.Parent] {
		total := len(n.Children)
		for _, childName := range n.Children {
			if child := t.nodes[childName]; child != nil {
				total += child.SubordinateCount
			}
		}
		n.SubordinateCount = total
		if n.Parent == "" {
			return
		}
	}
}

// Validate walks from the root verifying that every node's level equals its
// actual depth and that every child's parent pointer matches the parent it
// hangs under. Any violation means the tree invariant is already broken and
// is fatal, not a warning.
func (t *Tree) Validate() error {
	root := t.Root()
	if root == nil {
		return fmt.Errorf("%w: missing root", common.ErrConsistency)
	}
	if root.Level != 0 {
		return fmt.Errorf("%w: root at level %d", common.ErrConsistency, root.Level)
	}

	visited := make(map[string]bool, len(t.nodes))
	if err := t.validateNode(root, 0, visited); err != nil {
		return err
	}
	if len(visited) != len(t.nodes) {
		return fmt.Errorf("%w: %d nodes unreachable from root",
			common.ErrConsistency, len(t.nodes)-len(visited))
	}
	return nil
}

func (t *Tree) validateNode(n *Node, depth int, visited map[string]bool) error {
	if visited[n.Name] {
		return fmt.Errorf("%w: %q reachable twice", common.ErrConsistency, n.Name)
	}
	visited[n.Name] = true

	if n.Level != depth {
		return fmt.Errorf("%w: %q at level %d, expected %d", common.ErrConsistency, n.Name, n.Level, depth)
	}
	for _, childName := range n.Children {
		child := t.nodes[childName]
		if child == nil {
			return fmt.Errorf("%w: %q lists unknown child %q", common.ErrConsistency, n.Name, childName)
		}
		if child.Parent != n.Name {
			return fmt.Errorf("%w: %q recorded parent %q, actual %q",
				common.ErrConsistency, child.Name, child.Parent, n.Name)
		}
		if err := t.validateNode(child, depth+1, visited); err != nil {
			return err
		}
	}
	return nil
}

// Each calls fn for every node in the arena, in no particular order.
func (t *Tree) Each(fn func(n *Node)) {
	for _, n := range t.nodes {
		fn(n)
	}
}

// Walk visits the subtree under name depth-first in attach order.
func (t *Tree) Walk(name string, fn func(n *Node)) {
	n := t.nodes[name]
	if n == nil {
		return
	}
	fn(n)
	for _, childName := range n.Children {
		t.Walk(childName, fn)
	}
}
