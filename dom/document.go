package dom

import (
	"errors"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"adshield/hook"
)

var errForeignNode = errors.New("dom: node does not belong to this document")

// Document is an in-memory content tree.
//
// Like a browser DOM it is not safe for concurrent mutation; hosts serialize
// tree operations on one logical thread. Mutation records queue up until
// Flush delivers them to subscribers as one batch.
type Document struct {
	root *html.Node

	mu        sync.Mutex
	observers map[Subscription]func(MutationBatch)
	nextSub   Subscription
	pending   MutationBatch

	insertHooks hook.Chain
	attrHooks   hook.Chain
}

// Parse builds a Document from an HTML page.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{
		root:      root,
		observers: make(map[Subscription]func(MutationBatch)),
	}, nil
}

// NewDocument returns an empty html/head/body document.
func NewDocument() *Document {
	d, err := Parse(strings.NewReader("<html><head></head><body></body></html>"))
	if err != nil {
		// html.Parse only fails on reader errors
		panic(err)
	}
	return d
}

// Body 返回 body 元素
func (d *Document) Body() Element {
	var body *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	return Element{n: body, doc: d}
}

// CreateElement returns a detached element. Nothing is recorded until it is
// inserted with AppendChild.
func (d *Document) CreateElement(tag string) Element {
	tag = strings.ToLower(tag)
	return Element{
		n: &html.Node{
			Type:     html.ElementNode,
			Data:     tag,
			DataAtom: atom.Lookup([]byte(tag)),
		},
		doc: d,
	}
}

// ElementByID 按 id 查找已挂载的元素
func (d *Document) ElementByID(id string) (Element, bool) {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return Element{}, false
	}
	return Element{n: found, doc: d}, true
}

// AppendChild inserts child as the last child of parent. Resource insertion
// hooks run first and may suppress the insertion by returning an error.
func (d *Document) AppendChild(parent, child Element) error {
	if parent.doc != d || child.doc != d || parent.n == nil || child.n == nil {
		return errForeignNode
	}
	t := hook.Target{
		URL:  attr(child.n, "src"),
		Kind: kindOf(child.n),
		Node: child,
	}
	return d.insertHooks.Run(t, func() error {
		if child.n.Parent != nil {
			child.n.Parent.RemoveChild(child.n)
		}
		parent.n.AppendChild(child.n)
		if child.n.Type == html.ElementNode && parent.IsConnected() {
			d.record(func(b *MutationBatch) { b.Inserted = append(b.Inserted, child) })
		}
		return nil
	})
}

// AppendHTML parses fragment in the context of parent and appends each
// top-level node through AppendChild. Nodes suppressed by a hook are skipped;
// the first suppression error is returned after the rest are appended.
func (d *Document) AppendHTML(parent Element, fragment string) error {
	if parent.doc != d || parent.n == nil {
		return errForeignNode
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent.n)
	if err != nil {
		return err
	}
	var firstErr error
	for _, n := range nodes {
		if err := d.AppendChild(parent, Element{n: n, doc: d}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetAttribute assigns name=value on el. Attribute assignment hooks run first
// and may suppress the assignment.
func (d *Document) SetAttribute(el Element, name, value string) error {
	if el.doc != d || el.n == nil {
		return errForeignNode
	}
	name = strings.ToLower(name)
	t := hook.Target{
		URL:  value,
		Kind: kindOf(el.n),
		Attr: name,
		Node: el,
	}
	return d.attrHooks.Run(t, func() error {
		setAttr(el.n, name, value)
		if el.IsConnected() {
			d.record(func(b *MutationBatch) {
				b.AttributeChanges = append(b.AttributeChanges, AttributeChange{Node: el, Name: name})
			})
		}
		return nil
	})
}

// RemoveNode implements Tree.
func (d *Document) RemoveNode(n Node) bool {
	el, ok := n.(Element)
	if !ok || el.doc != d || el.n == nil || el.n.Parent == nil || !el.IsConnected() {
		return false
	}
	el.n.Parent.RemoveChild(el.n)
	return true
}

// ForEachExistingNode implements Tree. Elements are collected before the
// visitor runs, so the visitor may remove nodes.
func (d *Document) ForEachExistingNode(visit func(Node)) {
	var nodes []Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			nodes = append(nodes, Element{n: n, doc: d})
		}
		return true
	})
	for _, n := range nodes {
		visit(n)
	}
}

// SubscribeMutations implements Tree.
func (d *Document) SubscribeMutations(handler func(MutationBatch)) (Subscription, error) {
	if handler == nil {
		return 0, errors.New("dom: nil mutation handler")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextSub++
	d.observers[d.nextSub] = handler
	return d.nextSub, nil
}

// Unsubscribe implements Tree.
func (d *Document) Unsubscribe(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.observers, sub)
}

// Observers 返回当前订阅者数量
func (d *Document) Observers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers)
}

// Flush delivers queued mutation records to every subscriber as one batch and
// returns the number of records delivered. Records produced while handlers
// run are queued for the next Flush.
func (d *Document) Flush() int {
	d.mu.Lock()
	batch := d.pending
	d.pending = MutationBatch{}
	handlers := make([]func(MutationBatch), 0, len(d.observers))
	for sub := Subscription(1); sub <= d.nextSub; sub++ {
		if h, ok := d.observers[sub]; ok {
			handlers = append(handlers, h)
		}
	}
	d.mu.Unlock()

	if batch.Empty() {
		return 0
	}
	for _, h := range handlers {
		h(batch)
	}
	return len(batch.Inserted) + len(batch.AttributeChanges)
}

// InstallResourceInsertionHook implements hook.ResourceInsertionInstaller.
func (d *Document) InstallResourceInsertionHook(fn hook.InterceptFunc) (hook.RestoreFunc, error) {
	return d.insertHooks.Install(fn), nil
}

// InstallAttributeAssignmentHook implements hook.AttributeAssignmentInstaller.
func (d *Document) InstallAttributeAssignmentHook(fn hook.InterceptFunc) (hook.RestoreFunc, error) {
	return d.attrHooks.Install(fn), nil
}

// HookCount 返回插入与属性赋值两条链上已安装的 hook 总数
func (d *Document) HookCount() int {
	return d.insertHooks.Len() + d.attrHooks.Len()
}

// Render writes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) record(fn func(b *MutationBatch)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.pending)
}

func kindOf(n *html.Node) hook.Kind {
	if n.Type != html.ElementNode {
		return hook.KindOther
	}
	switch n.Data {
	case "script":
		return hook.KindScript
	case "iframe", "frame":
		return hook.KindFrame
	case "img":
		return hook.KindImage
	}
	return hook.KindOther
}

// walk visits n and its descendants depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}
