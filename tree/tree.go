// Package tree implements rooted out-trees with named nodes and
// branch lengths.
package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("tree")

// ErrInvalidTopology is returned when edges do not form a single
// rooted out-tree.
var ErrInvalidTopology = errors.New("invalid topology")

// Mode is the Newick tokenizer mode.
type Mode int

const (
	NORMAL Mode = iota
	LENGTH
)

// Edge is a directed edge from a parent to a child node.
type Edge struct {
	Parent string `json:"parent" yaml:"parent"`
	Child  string `json:"child" yaml:"child"`
}

func (e Edge) String() string {
	return e.Parent + "->" + e.Child
}

type Tree struct {
	*Node
	nNodes int
	nodes  []*Node
	byName map[string]*Node
}

func (tree *Tree) ClearCache() {
	tree.nNodes = 0
	tree.nodes = nil
	tree.byName = nil
}

func (tree *Tree) NNodes() int {
	if tree.nNodes == 0 {
		tree.nNodes = tree.NSubNodes()
	}
	return tree.nNodes
}

// Nodes returns nodes indexed by Id (preorder).
func (tree *Tree) Nodes() []*Node {
	if tree.nodes == nil {
		tree.nodes = make([]*Node, tree.NNodes())
		for node := range tree.Walker(nil) {
			tree.nodes[node.Id] = node
		}
	}
	return tree.nodes
}

// Names returns node names in preorder.
func (tree *Tree) Names() []string {
	names := make([]string, 0, tree.NNodes())
	for _, node := range tree.Nodes() {
		names = append(names, node.Name)
	}
	return names
}

// NodeByName returns a node with the given name or nil.
func (tree *Tree) NodeByName(name string) *Node {
	if tree.byName == nil {
		tree.byName = make(map[string]*Node, tree.NNodes())
		for _, node := range tree.Nodes() {
			tree.byName[node.Name] = node
		}
	}
	return tree.byName[name]
}

// Edges returns all the edges in preorder of the child nodes.
func (tree *Tree) Edges() []Edge {
	edges := make([]Edge, 0, tree.NNodes()-1)
	for _, node := range tree.Nodes() {
		if node.IsRoot() {
			continue
		}
		edges = append(edges, Edge{Parent: node.Parent.Name, Child: node.Name})
	}
	return edges
}

func (tree *Tree) Terminals() <-chan *Node {
	return tree.Walker(func(n *Node) bool {
		return n.IsTerminal()
	})
}

func (tree *Tree) NonTerminals() <-chan *Node {
	return tree.Walker(func(node *Node) bool {
		return !node.IsTerminal()
	})
}

func (tree *Tree) NLeaves() (i int) {
	for range tree.Terminals() {
		i++
	}
	return
}

func (tree *Tree) Walker(filter func(*Node) bool) <-chan *Node {
	ch := make(chan *Node, tree.NNodes())
	tree.Walk(ch, filter)
	close(ch)
	return ch
}

// Copy creates independent copy of the tree.
func (tree *Tree) Copy() (newTree *Tree) {
	nNodes := tree.NNodes()
	newTree = &Tree{
		nNodes: nNodes,
		nodes:  make([]*Node, nNodes),
	}

	// Create node list.
	for i, node := range tree.Nodes() {
		if i != node.Id {
			panic("node id mismatch")
		}
		newTree.nodes[i] = node.Copy()
	}

	// Rewire node/parent connections.
	for i, node := range tree.Nodes() {
		newNode := newTree.nodes[i]
		for _, child := range node.childNodes {
			newNode.AddChild(newTree.nodes[child.Id])
		}
	}

	newTree.Node = newTree.nodes[0]

	return
}

type Node struct {
	Name string
	// BranchLength is the length of the edge leading to the node.
	BranchLength float64
	Parent       *Node
	childNodes   []*Node
	Id           int
}

func NewNode(parent *Node, nodeId int) (node *Node) {
	node = &Node{Parent: parent, Id: nodeId}
	return
}

// Copy creates copy of node with empty parent and children.
func (node *Node) Copy() *Node {
	return &Node{
		Name:         node.Name,
		BranchLength: node.BranchLength,
		childNodes:   make([]*Node, 0, len(node.childNodes)),
		Id:           node.Id,
	}
}

func (node *Node) AddChild(subNode *Node) {
	subNode.Parent = node
	node.childNodes = append(node.childNodes, subNode)
}

// String returns Newick representation including internal node names.
func (node *Node) String() (s string) {
	if node.IsTerminal() {
		s = fmt.Sprintf("%s:%0.6f", node.Name, node.BranchLength)
	} else {
		s += "("
		for i, child := range node.childNodes {
			s += child.String()
			if i != len(node.childNodes)-1 {
				s += ","
			}
		}
		s += fmt.Sprintf(")%s:%0.6f", node.Name, node.BranchLength)
	}
	if node.IsRoot() {
		s += ";"
	}
	return s
}

func (node *Node) LongString() (s string) {
	s = "<"
	if node.Parent == nil {
		s += "root, "
	}
	if node.Name != "" {
		s += "name=" + node.Name + ", "
	}
	s += fmt.Sprintf("Id=%v, BranchLength=%v", node.Id, node.BranchLength)
	s += ">"
	return
}

func (node *Node) FullString() string {
	return strings.TrimSpace(node.prefixString(""))
}

func (node *Node) prefixString(prefix string) (s string) {
	s = prefix + node.LongString() + "\n"
	for _, node := range node.childNodes {
		s += node.prefixString(prefix + "    ")
	}
	return
}

func (node *Node) ChildNodes() []*Node {
	return node.childNodes
}

func (node *Node) Walk(ch chan *Node, filter func(*Node) bool) {
	if filter == nil || filter(node) {
		ch <- node
	}
	for _, node := range node.childNodes {
		node.Walk(ch, filter)
	}
}

func (node *Node) NSubNodes() (size int) {
	for _, node := range node.childNodes {
		size += node.NSubNodes()
	}
	return size + 1
}

func (node *Node) IsRoot() bool {
	return node.Parent == nil
}

func (node *Node) IsTerminal() bool {
	return len(node.childNodes) == 0
}

// topologyError wraps ErrInvalidTopology with a message.
func topologyError(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTopology, fmt.Sprintf(format, a...))
}

// FromEdges builds a tree from a parent->child edge list. The
// designated root must be the only node without a parent, every other
// node must have exactly one parent and be reachable from the root.
// Children keep the order of the edge list.
func FromEdges(edges []Edge, root string) (*Tree, error) {
	if root == "" {
		return nil, topologyError("empty root name")
	}

	parent := make(map[string]string, len(edges))
	children := make(map[string][]string, len(edges)+1)
	names := []string{root}
	seen := map[string]bool{root: true}
	addName := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, e := range edges {
		if e.Parent == "" || e.Child == "" {
			return nil, topologyError("edge %v has an empty node name", e)
		}
		if e.Parent == e.Child {
			return nil, topologyError("self loop at %s", e.Child)
		}
		if e.Child == root {
			return nil, topologyError("root %s has a parent %s", root, e.Parent)
		}
		if p, ok := parent[e.Child]; ok {
			if p == e.Parent {
				return nil, topologyError("duplicate edge %v", e)
			}
			return nil, topologyError("node %s has two parents: %s and %s", e.Child, p, e.Parent)
		}
		parent[e.Child] = e.Parent
		children[e.Parent] = append(children[e.Parent], e.Child)
		addName(e.Parent)
		addName(e.Child)
	}

	for _, name := range names {
		if _, ok := parent[name]; !ok && name != root {
			return nil, topologyError("ambiguous root: %s and %s have no parent", root, name)
		}
	}

	// Nodes not reachable from the root are on a cycle.
	nodeId := 0
	rootNode := NewNode(nil, nodeId)
	rootNode.Name = root
	t := &Tree{Node: rootNode}
	nodeId++
	var build func(*Node)
	build = func(node *Node) {
		for _, name := range children[node.Name] {
			child := NewNode(nil, nodeId)
			child.Name = name
			nodeId++
			node.AddChild(child)
			build(child)
		}
	}
	build(rootNode)

	if nodeId != len(names) {
		return nil, topologyError("%d of %d nodes are not reachable from root %s (cycle)",
			len(names)-nodeId, len(names), root)
	}

	log.Debugf("built tree with %d nodes rooted at %s", nodeId, root)
	return t, nil
}

// SetBranchLengths sets node branch lengths from an edge map. Every
// edge of the tree must have an entry and the map must not have
// entries for edges absent from the tree.
func (tree *Tree) SetBranchLengths(blen map[Edge]float64) error {
	edges := tree.Edges()
	if len(blen) != len(edges) {
		return topologyError("%d branch lengths for %d edges", len(blen), len(edges))
	}
	for _, e := range edges {
		l, ok := blen[e]
		if !ok {
			return topologyError("no branch length for edge %v", e)
		}
		tree.NodeByName(e.Child).BranchLength = l
	}
	return nil
}

// BranchLengths returns a map from edge to the child branch length.
func (tree *Tree) BranchLengths() map[Edge]float64 {
	blen := make(map[Edge]float64, tree.NNodes()-1)
	for _, node := range tree.Nodes() {
		if node.IsRoot() {
			continue
		}
		blen[Edge{Parent: node.Parent.Name, Child: node.Name}] = node.BranchLength
	}
	return blen
}

func IsSpecial(c rune) bool {
	switch c {
	case '(', ')', ':', ';', ',':
		return true
	}
	return false

}
func NewickSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	// Skip leading spaces; and return 1-char tokens.
	for width := 0; start < len(data); start += width {
		var r rune
		r, width = utf8.DecodeRune(data[start:])
		if IsSpecial(r) {
			return start + width, data[start : start+width], nil
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// Scan until space or special character.
	for width, i := 0, start; i < len(data); i += width {
		var r rune
		r, width = utf8.DecodeRune(data[i:])
		if unicode.IsSpace(r) || IsSpecial(r) {
			return i, data[start:i], nil
		}
	}
	// If we're at EOF, we have a final, non-empty, non-terminated word. Return it.
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	// Request more data.
	return 0, nil, nil
}

// ParseNewick reads a tree in Newick format. Internal node names are
// supported, the root branch length is ignored.
func ParseNewick(rd io.Reader) (tree *Tree, err error) {
	scanner := bufio.NewScanner(rd)

	scanner.Split(NewickSplit)

	nodeId := 0

	node := NewNode(nil, nodeId)
	tree = &Tree{Node: node}
	nodeId++

	mode := NORMAL

	for scanner.Scan() {
		text := scanner.Text()
		switch text {
		case "(":
			subNode := NewNode(nil, nodeId)
			nodeId++
			node.AddChild(subNode)
			node = subNode

		case ",":
			if node.Parent == nil {
				return nil, errors.New("top level comma mismatch")
			}
			subNode := NewNode(nil, nodeId)
			nodeId++

			node.Parent.AddChild(subNode)
			node = subNode

		case ")":
			if node.Parent == nil {
				return nil, errors.New("brackets mismatch")
			}
			node = node.Parent
		case ":":
			mode = LENGTH
		case ";":
			tree.Node.BranchLength = 0
			return tree.renumber(), nil
		default:
			switch mode {
			case LENGTH:
				l, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, err
				}
				node.BranchLength = l
				mode = NORMAL
			default:
				node.Name = text
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}

	return nil, errors.New("newick tree is not terminated by ';'")
}

// renumber assigns node ids in preorder.
func (tree *Tree) renumber() *Tree {
	tree.ClearCache()
	i := 0
	for node := range tree.Walker(nil) {
		node.Id = i
		i++
	}
	return tree
}

// Validate checks that every node is named and names are unique.
func (tree *Tree) Validate() error {
	seen := make(map[string]bool, tree.NNodes())
	for _, node := range tree.Nodes() {
		if node.Name == "" {
			return topologyError("unnamed node (Id=%d)", node.Id)
		}
		if seen[node.Name] {
			return topologyError("duplicate node name %s", node.Name)
		}
		seen[node.Name] = true
	}
	return nil
}
