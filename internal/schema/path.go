package schema

import "strings"

// Node is one step of a schema path. Nodes form a singly linked chain from
// the root feature type down to the requested element.
type Node struct {
	element PathElement
	parent  *Node
	child   *Node
}

func NewNode(element PathElement) *Node {
	return &Node{element: element}
}

func (n *Node) Element() PathElement { return n.element }
func (n *Node) Parent() *Node        { return n.parent }
func (n *Node) Child() *Node         { return n.child }

// SetChild attaches child below n and returns child.
func (n *Node) SetChild(child *Node) *Node {
	n.child = child
	if child != nil {
		child.parent = n
	}
	return child
}

// IsEqualTo reports whether n and other describe the same traversal step.
// With compareChild set, the remaining child chains must match as well.
func (n *Node) IsEqualTo(other *Node, compareChild bool) bool {
	if other == nil || n.element != other.element {
		return false
	}
	if !compareChild {
		return true
	}
	if n.child == nil || other.child == nil {
		return n.child == nil && other.child == nil
	}
	return n.child.IsEqualTo(other.child, true)
}

// Path is a resolved schema path, rooted at a feature type.
type Path struct {
	root *Node
}

func NewPath(root *Node) *Path {
	return &Path{root: root}
}

func (p *Path) Root() *Node { return p.root }

// Leaf returns the last node of the path.
func (p *Path) Leaf() *Node {
	n := p.root
	for n.child != nil {
		n = n.child
	}
	return n
}

func (p *Path) String() string {
	var parts []string
	for cur := p.root; cur != nil; cur = cur.child {
		parts = append(parts, cur.element.ElementName())
	}
	return strings.Join(parts, "/")
}
