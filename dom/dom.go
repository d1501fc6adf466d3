// Package dom describes the host content tree the filtering core inspects,
// and provides Document, an in-memory implementation backed by
// golang.org/x/net/html.
package dom

// Node is a non-owning handle to a host tree element. A handle is only
// valid for the duration of the callback that produced it; the core never
// keeps one around afterwards.
//
// Implementations must be comparable so a batch can track visited nodes.
type Node interface {
	Tag() string // lower-case element name
	Attr(name string) (string, bool)
	AttrNames() []string
	// BackgroundImage returns the resolved background-image reference, or ""
	BackgroundImage() string
	Children() []Node
	IsConnected() bool
}

// AttributeChange reports that Name was (re)assigned on Node.
type AttributeChange struct {
	Node Node
	Name string
}

// MutationBatch is one group of mutations the host delivers together.
type MutationBatch struct {
	Inserted         []Node
	AttributeChanges []AttributeChange
}

// Empty reports whether the batch carries no records.
func (b MutationBatch) Empty() bool {
	return len(b.Inserted) == 0 && len(b.AttributeChanges) == 0
}

// Subscription identifies a mutation handler registered with a Tree.
type Subscription uint64

// Tree is the host contract for enumerating, removing and observing nodes.
type Tree interface {
	ForEachExistingNode(visit func(Node))
	// RemoveNode detaches n and reports whether it was still attached.
	RemoveNode(n Node) bool
	SubscribeMutations(handler func(MutationBatch)) (Subscription, error)
	Unsubscribe(sub Subscription)
}

// IsFrame 判断节点是否为内嵌框架
func IsFrame(n Node) bool {
	switch n.Tag() {
	case "iframe", "frame":
		return true
	}
	return false
}

// IsScript 判断节点是否为脚本节点
func IsScript(n Node) bool {
	return n.Tag() == "script"
}
