// Package scanner removes blocked nodes from the host tree: once over the
// existing tree, then incrementally for every mutation batch.
package scanner

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"adshield/adblock"
	"adshield/dom"
	"adshield/stats"
)

// ErrNoTree is returned by Start when tree is nil.
var ErrNoTree = errors.New("scanner: nil tree")

// 这些属性变化后需要重新判定节点
var watchedAttributes = map[string]bool{
	"src":   true,
	"class": true,
	"id":    true,
	"style": true,
}

// Scanner classifies tree nodes and removes the blocked ones.
//
// Batch handling runs on the host's delivery goroutine; the scanner keeps
// no state between batches besides the counters in stats.
type Scanner struct {
	filter adblock.Filter
	stats  *stats.Stats

	mu   sync.Mutex
	tree dom.Tree
	sub  dom.Subscription
}

// New 创建扫描器
func New(filter adblock.Filter, st *stats.Stats) *Scanner {
	return &Scanner{filter: filter, stats: st}
}

// Start subscribes to mutations of tree. Starting an already started scanner
// does nothing.
func (s *Scanner) Start(tree dom.Tree) error {
	if tree == nil {
		return ErrNoTree
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree != nil {
		return nil
	}
	sub, err := tree.SubscribeMutations(func(b dom.MutationBatch) {
		s.handleBatch(tree, b)
	})
	if err != nil {
		return fmt.Errorf("subscribe mutations: %w", err)
	}
	s.tree, s.sub = tree, sub
	return nil
}

// Stop cancels the subscription. A batch already being handled completes.
func (s *Scanner) Stop() {
	s.mu.Lock()
	tree, sub := s.tree, s.sub
	s.tree, s.sub = nil, 0
	s.mu.Unlock()

	if tree != nil {
		tree.Unsubscribe(sub)
	}
}

// Active 报告是否已订阅
func (s *Scanner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree != nil
}

func (s *Scanner) current() dom.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Sweep removes every blocked node of the started tree and returns how many
// were removed. Nodes detached before their turn are skipped.
func (s *Scanner) Sweep() int {
	tree := s.current()
	if tree == nil {
		return 0
	}
	return s.SweepTree(tree)
}

// SweepTree is Sweep over an explicit tree, for one-shot filtering without a
// subscription.
func (s *Scanner) SweepTree(tree dom.Tree) int {
	removed := 0
	tree.ForEachExistingNode(func(n dom.Node) {
		s.guard(func() {
			if !n.IsConnected() {
				return
			}
			v := s.filter.Classify(n)
			if v.Blocked && s.remove(tree, n, v, "Removed existing") {
				removed++
			}
		})
	})
	return removed
}

// HandleBatch processes one mutation batch against the started tree.
func (s *Scanner) HandleBatch(b dom.MutationBatch) {
	if tree := s.current(); tree != nil {
		s.handleBatch(tree, b)
	}
}

func (s *Scanner) handleBatch(tree dom.Tree, b dom.MutationBatch) {
	visited := make(map[dom.Node]struct{})

	for _, n := range b.Inserted {
		if n == nil {
			continue
		}
		s.guard(func() {
			if markVisited(visited, n) {
				s.inspectInserted(tree, n, visited)
			}
		})
	}

	for _, ch := range b.AttributeChanges {
		n := ch.Node
		if n == nil || !s.watched(ch.Name) {
			continue
		}
		s.guard(func() {
			if !markVisited(visited, n) || !n.IsConnected() {
				return
			}
			v := s.filter.Classify(n)
			if v.Blocked {
				s.remove(tree, n, v, fmt.Sprintf("Removed after %s change", strings.ToLower(ch.Name)))
			}
		})
	}
}

// markVisited records n and reports whether this is its first visit in the
// batch. A node that cannot be used as a map key panics here, inside guard.
func markVisited(visited map[dom.Node]struct{}, n dom.Node) bool {
	if _, seen := visited[n]; seen {
		return false
	}
	visited[n] = struct{}{}
	return true
}

// inspectInserted removes n when it is blocked; otherwise it checks the
// frames nested below n.
func (s *Scanner) inspectInserted(tree dom.Tree, n dom.Node, visited map[dom.Node]struct{}) {
	if !n.IsConnected() {
		return
	}
	v := s.filter.Classify(n)
	if v.Blocked {
		s.remove(tree, n, v, "Removed dynamic")
		return
	}
	s.inspectNestedFrames(tree, n, visited)
}

// inspectNestedFrames checks every child of parent under its own guard, so a
// broken child skips only itself and its subtree.
func (s *Scanner) inspectNestedFrames(tree dom.Tree, parent dom.Node, visited map[dom.Node]struct{}) {
	for _, child := range parent.Children() {
		if child == nil {
			continue
		}
		s.guard(func() { s.inspectNestedChild(tree, child, visited) })
	}
}

func (s *Scanner) inspectNestedChild(tree dom.Tree, child dom.Node, visited map[dom.Node]struct{}) {
	if _, seen := visited[child]; seen {
		return
	}
	if dom.IsFrame(child) {
		visited[child] = struct{}{}
		v := s.filter.Classify(child)
		if v.Blocked && s.remove(tree, child, v, "Removed nested") {
			return
		}
	}
	s.inspectNestedFrames(tree, child, visited)
}

func (s *Scanner) watched(name string) bool {
	lower := strings.ToLower(name)
	return watchedAttributes[lower] || s.filter.IsMarker(lower)
}

// remove detaches n and counts it. A node the host already detached is not
// counted.
func (s *Scanner) remove(tree dom.Tree, n dom.Node, v adblock.Verdict, action string) bool {
	if !tree.RemoveNode(n) {
		return false
	}
	cat := stats.CategoryElement
	if v.Category == adblock.CategoryFrame {
		cat = stats.CategoryFrame
	}
	if s.stats != nil {
		s.stats.Record(cat, fmt.Sprintf("%s %s <%s> (%s)", action, cat, n.Tag(), v.Reason))
	}
	return true
}

// guard runs fn, logging a panic in it as a warning.
func (s *Scanner) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil && s.stats != nil {
			s.stats.Log(stats.CategoryWarning, fmt.Sprintf("inspect node failed: %v", r))
		}
	}()
	fn()
}
