// Package flamegraph rebuilds weighted call trees from the stack store.
package flamegraph

import (
	"sort"
)

// RootName names the root of every tree.
const RootName = "root"

// Node is one frame of the call tree. Its Value is the total weight of every
// stack passing through it, so Value equals the node's own weight plus the
// Values of its children.
type Node struct {
	Name     string
	Value    int64
	Children map[string]*Node
}

// NewNode creates an empty node.
func NewNode(name string) *Node {
	return &Node{Name: name, Children: make(map[string]*Node)}
}

// Add adds value to n and to every node along frames, creating missing
// children. frames are outermost first.
func (n *Node) Add(frames []string, value int64) {
	node := n
	node.Value += value
	for _, frame := range frames {
		child, ok := node.Children[frame]
		if !ok {
			child = NewNode(frame)
			node.Children[frame] = child
		}
		child.Value += value
		node = child
	}
}

// Tree is the serialized form of a call tree.
type Tree struct {
	Name     string `json:"name"`
	Value    int64  `json:"value"`
	Children []Tree `json:"children,omitempty"`
}

// Serialize returns the tree below n, keeping only children whose Value is
// strictly greater than thresholdValue. Children are sorted by name.
func (n *Node) Serialize(thresholdValue float64) Tree {
	t := Tree{Name: n.Name, Value: n.Value}
	if len(n.Children) == 0 {
		return t
	}

	names := make([]string, 0, len(n.Children))
	for name, child := range n.Children {
		if float64(child.Value) > thresholdValue {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return t
	}
	sort.Strings(names)

	t.Children = make([]Tree, 0, len(names))
	for _, name := range names {
		t.Children = append(t.Children, n.Children[name].Serialize(thresholdValue))
	}
	return t
}

// Find returns the node reached by following frames from n, or nil.
func (n *Node) Find(frames ...string) *Node {
	node := n
	for _, frame := range frames {
		node = node.Children[frame]
		if node == nil {
			return nil
		}
	}
	return node
}

// Self returns the weight of stacks ending exactly at n.
func (n *Node) Self() int64 {
	self := n.Value
	for _, child := range n.Children {
		self -= child.Value
	}
	return self
}
