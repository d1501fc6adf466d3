// Package lifecycle owns the enabled/disabled state of the filtering core and
// wires the classifier, interceptor, scanner and telemetry together.
package lifecycle

import (
	"fmt"
	"sync"

	"adshield/adblock"
	"adshield/dom"
	"adshield/interceptor"
	"adshield/ruleset"
	"adshield/scanner"
	"adshield/stats"
)

// State 过滤状态
type State int

const (
	Disabled State = iota
	Enabled
)

func (s State) String() string {
	if s == Enabled {
		return "enabled"
	}
	return "disabled"
}

// Controller enables and disables filtering on one host. Transitions are
// serialized; Enable and Disable may be called from any goroutine.
type Controller struct {
	mu    sync.Mutex
	state State

	host any
	tree dom.Tree

	classifier  *adblock.Classifier
	stats       *stats.Stats
	interceptor *interceptor.Interceptor
	scanner     *scanner.Scanner
}

// New builds a disabled controller. host is inspected for hook install
// points and tree receives the scanner; either may be nil.
func New(rs *ruleset.RuleSet, host any, tree dom.Tree, sink stats.Sink) *Controller {
	classifier := adblock.NewClassifier(rs)
	st := stats.NewStats(sink)
	c := &Controller{
		host:        host,
		tree:        tree,
		classifier:  classifier,
		stats:       st,
		interceptor: interceptor.New(classifier, st),
		scanner:     scanner.New(classifier, st),
	}
	c.logSkipped(classifier.Rules())
	return c
}

// Enable zeroes the counters, installs the request hooks, subscribes the
// scanner and sweeps the existing tree. It reports false when already
// enabled.
func (c *Controller) Enable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enableLocked()
}

func (c *Controller) enableLocked() bool {
	if c.state == Enabled {
		return false
	}

	c.stats.Reset()
	if c.host != nil {
		c.interceptor.Install(c.host)
	}

	removed := 0
	if c.tree != nil {
		// 订阅失败时仍然清理已有节点，只失去增量处理
		if err := c.scanner.Start(c.tree); err != nil {
			c.stats.Log(stats.CategoryWarning, err.Error())
		}
		removed = c.scanner.SweepTree(c.tree)
	}

	c.state = Enabled
	c.stats.Log(stats.CategorySystem, fmt.Sprintf("AdBlock enabled, %d existing nodes removed", removed))
	return true
}

// Disable restores the host primitives and cancels the subscription. The
// counters stay readable. It reports false when already disabled.
func (c *Controller) Disable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disableLocked()
}

func (c *Controller) disableLocked() bool {
	if c.state == Disabled {
		return false
	}

	c.interceptor.Uninstall()
	c.scanner.Stop()

	c.state = Disabled
	c.stats.Log(stats.CategorySystem, "AdBlock disabled")
	return true
}

// Toggle 切换状态并返回新状态
func (c *Controller) Toggle() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Enabled {
		c.disableLocked()
	} else {
		c.enableLocked()
	}
	return c.state
}

// State 返回当前状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats 返回计数器快照
func (c *Controller) Stats() stats.Snapshot {
	return c.stats.Snapshot()
}

// TotalBlocked 返回拦截总数
func (c *Controller) TotalBlocked() uint64 {
	return c.stats.TotalBlocked()
}

// Events 返回事件日志副本
func (c *Controller) Events() []stats.Event {
	return c.stats.Events()
}

// Telemetry exposes the underlying stats for the control surface.
func (c *Controller) Telemetry() *stats.Stats {
	return c.stats
}

// Classifier 返回当前分类器
func (c *Controller) Classifier() *adblock.Classifier {
	return c.classifier
}

// ReloadRules swaps in rs. The next classification uses it; a call already
// in progress finishes with the old set.
func (c *Controller) ReloadRules(rs *ruleset.RuleSet) {
	if rs == nil {
		rs = ruleset.Empty()
	}
	c.classifier.Swap(rs)
	c.logSkipped(rs)
	c.stats.Log(stats.CategorySystem, fmt.Sprintf("Rules reloaded, %d entries", rs.Count()))
}

func (c *Controller) logSkipped(rs *ruleset.RuleSet) {
	for _, s := range rs.Skipped() {
		c.stats.Log(stats.CategoryWarning, s.Error())
	}
}
