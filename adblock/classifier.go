package adblock

import (
	"strings"
	"sync/atomic"

	"adshield/dom"
	"adshield/hook"
	"adshield/ruleset"
)

// Classifier answers whether a URL or a node is a blocked item.
//
// Every call loads the current rule set once and evaluates against that
// snapshot, so a concurrent Swap is observed either entirely or not at all.
// Classification never panics: malformed input and misbehaving host nodes
// are classified as not blocked.
type Classifier struct {
	rules atomic.Pointer[ruleset.RuleSet]
}

// NewClassifier 创建分类器，rs 为 nil 时使用空规则集
func NewClassifier(rs *ruleset.RuleSet) *Classifier {
	c := &Classifier{}
	c.Swap(rs)
	return c
}

// Rules 返回当前使用的规则集
func (c *Classifier) Rules() *ruleset.RuleSet {
	return c.rules.Load()
}

// Swap atomically replaces the rule set and returns the previous one.
func (c *Classifier) Swap(rs *ruleset.RuleSet) *ruleset.RuleSet {
	if rs == nil {
		rs = ruleset.Empty()
	}
	return c.rules.Swap(rs)
}

// ClassifyURL reports whether url contains any domain pattern.
func (c *Classifier) ClassifyURL(url string) bool {
	_, ok := matchURL(c.Rules(), url)
	return ok
}

// ClassifyFrame reports whether a nested frame source is blocked. Frame
// sources are checked against the domain patterns and the broader frame
// keyword list.
func (c *Classifier) ClassifyFrame(frameURL string) bool {
	_, ok := matchFrame(c.Rules(), frameURL)
	return ok
}

// ClassifyRequest is the check used at interception points: the frame or
// domain check for kind, then the declarative network rules.
func (c *Classifier) ClassifyRequest(url string, kind hook.Kind) bool {
	_, ok := c.Explain(url, kind)
	return ok
}

// Explain is ClassifyRequest returning the rule that matched.
func (c *Classifier) Explain(url string, kind hook.Kind) (string, bool) {
	if url == "" {
		return "", false
	}
	rs := c.Rules()
	if kind == hook.KindFrame {
		if reason, ok := matchFrame(rs, url); ok {
			return reason, true
		}
	} else if reason, ok := matchURL(rs, url); ok {
		return reason, true
	}
	return rs.MatchNetwork(url, kind)
}

// ClassifyNode reports whether node is a blocked element.
func (c *Classifier) ClassifyNode(node dom.Node) bool {
	return c.Classify(node).Blocked
}

// Classify returns the verdict for node including its category.
func (c *Classifier) Classify(node dom.Node) (v Verdict) {
	if node == nil {
		return Verdict{Category: CategoryElement}
	}
	rs := c.Rules()

	defer func() {
		if recover() != nil {
			v = Verdict{Category: CategoryElement}
		}
	}()

	v.Category = categoryOf(node)
	v.Reason, v.Blocked = matchNode(rs, node)
	return v
}

// IsMarker 判断属性名是否为数据标记
func (c *Classifier) IsMarker(name string) bool {
	return c.Rules().HasMarker(name)
}

func categoryOf(node dom.Node) Category {
	switch {
	case dom.IsFrame(node):
		return CategoryFrame
	case dom.IsScript(node):
		return CategoryScript
	default:
		return CategoryElement
	}
}

func matchURL(rs *ruleset.RuleSet, url string) (string, bool) {
	if url == "" {
		return "", false
	}
	return rs.MatchDomain(strings.ToLower(url))
}

func matchFrame(rs *ruleset.RuleSet, frameURL string) (string, bool) {
	if frameURL == "" {
		return "", false
	}
	lower := strings.ToLower(frameURL)
	if p, ok := rs.MatchDomain(lower); ok {
		return p, true
	}
	return rs.MatchFrameKeyword(lower)
}

// matchNode 依次检查 class/id 关键字、数据标记属性、背景图片标记和内嵌框架来源
func matchNode(rs *ruleset.RuleSet, node dom.Node) (string, bool) {
	if class, ok := node.Attr("class"); ok {
		if kw, ok := rs.MatchKeyword(strings.ToLower(class)); ok {
			return "class:" + kw, true
		}
	}
	if id, ok := node.Attr("id"); ok {
		if kw, ok := rs.MatchKeyword(strings.ToLower(id)); ok {
			return "id:" + kw, true
		}
	}

	for _, name := range node.AttrNames() {
		if rs.HasMarker(name) {
			return "marker:" + strings.ToLower(name), true
		}
	}

	if token := rs.ImageToken(); token != "" {
		if bg := strings.ToLower(node.BackgroundImage()); strings.Contains(bg, token) {
			return "background:" + token, true
		}
	}

	if dom.IsFrame(node) {
		if src, ok := node.Attr("src"); ok {
			if reason, ok := matchFrame(rs, src); ok {
				return "frame:" + reason, true
			}
		}
	}
	return "", false
}
