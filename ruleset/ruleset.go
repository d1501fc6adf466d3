package ruleset

import (
	"fmt"
	"strings"

	radix "github.com/hashicorp/go-immutable-radix"

	"adshield/hook"
	"adshield/internal/util"
)

// Field names used in SkippedRule.
const (
	FieldDomain  = "domain_patterns"
	FieldKeyword = "attribute_keywords"
	FieldMarker  = "data_markers"
	FieldFrame   = "frame_keywords"
	FieldNetwork = "network_rules"
)

// SkippedRule records an entry that could not be loaded.
type SkippedRule struct {
	Field  string
	Entry  string
	Reason string
}

func (s SkippedRule) Error() string {
	return fmt.Sprintf("%s: skipped %q: %s", s.Field, s.Entry, s.Reason)
}

// RuleSet is an immutable, pre-normalized rule bundle. It is safe for
// concurrent use; reloading rules means building a new RuleSet.
type RuleSet struct {
	domains       []string
	keywords      []string
	markers       *radix.Tree // 属性名 -> struct{}，只读
	frameKeywords []string    // 仅框架额外关键字，不含 domains
	imageToken    string
	network       *networkRules
	skipped       []SkippedRule
	source        Lists // 已接受的条目，保持输入形式
}

// New normalizes l into a RuleSet. Invalid entries are skipped one by one
// and reported by Skipped; they never prevent the rest from loading.
func New(l Lists) *RuleSet {
	rs := &RuleSet{}
	seenKeyword := make(map[string]struct{})
	markers := radix.New().Txn()

	addMarker := func(m string) {
		markers.Insert([]byte(m), struct{}{})
	}

	rs.domains = rs.normalizeList(FieldDomain, l.DomainPatterns, parseDomain)

	seenSource := make(map[string]struct{})
	for _, raw := range l.AttributeKeywords {
		kw, marker, err := parseSelector(raw)
		if err != nil {
			rs.skip(FieldKeyword, raw, err.Error())
			continue
		}
		entry := strings.TrimSpace(raw)
		if _, dup := seenSource[entry]; !dup {
			seenSource[entry] = struct{}{}
			rs.source.AttributeKeywords = append(rs.source.AttributeKeywords, entry)
		}
		if marker != "" {
			addMarker(marker)
			continue
		}
		if _, dup := seenKeyword[kw]; dup {
			continue
		}
		seenKeyword[kw] = struct{}{}
		rs.keywords = append(rs.keywords, kw)
	}

	seenMarker := make(map[string]struct{})
	for _, raw := range l.DataMarkers {
		m, err := parseMarker(raw)
		if err != nil {
			rs.skip(FieldMarker, raw, err.Error())
			continue
		}
		addMarker(m)
		if _, dup := seenMarker[m]; !dup {
			seenMarker[m] = struct{}{}
			rs.source.DataMarkers = append(rs.source.DataMarkers, m)
		}
	}
	rs.markers = markers.Commit()

	rs.frameKeywords = rs.normalizeList(FieldFrame, l.FrameKeywords, parsePattern)
	rs.imageToken = util.NormalizePattern(l.AdImageToken)

	var skipped []SkippedRule
	rs.network, skipped = compileNetworkRules(l.NetworkRules)
	rs.skipped = append(rs.skipped, skipped...)

	rs.source.DomainPatterns = clone(rs.domains)
	rs.source.FrameKeywords = clone(rs.frameKeywords)
	rs.source.AdImageToken = rs.imageToken
	rs.source.NetworkRules = rs.network.Lines()
	return rs
}

// Empty returns a rule set that blocks nothing.
func Empty() *RuleSet {
	return New(Lists{})
}

func (rs *RuleSet) normalizeList(field string, entries []string, parse func(string) (string, error)) []string {
	var out []string
	seen := make(map[string]struct{}, len(entries))
	for _, raw := range entries {
		v, err := parse(raw)
		if err != nil {
			rs.skip(field, raw, err.Error())
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (rs *RuleSet) skip(field, entry, reason string) {
	rs.skipped = append(rs.skipped, SkippedRule{Field: field, Entry: entry, Reason: reason})
}

// MatchDomain reports the first domain pattern contained in lowerURL.
// lowerURL must already be lower-cased.
func (rs *RuleSet) MatchDomain(lowerURL string) (string, bool) {
	for _, p := range rs.domains {
		if strings.Contains(lowerURL, p) {
			return p, true
		}
	}
	return "", false
}

// MatchKeyword reports the first attribute keyword contained in lowerText.
func (rs *RuleSet) MatchKeyword(lowerText string) (string, bool) {
	if lowerText == "" {
		return "", false
	}
	for _, kw := range rs.keywords {
		if strings.Contains(lowerText, kw) {
			return kw, true
		}
	}
	return "", false
}

// MatchFrameKeyword reports the first frame-only keyword contained in lowerURL.
func (rs *RuleSet) MatchFrameKeyword(lowerURL string) (string, bool) {
	for _, kw := range rs.frameKeywords {
		if strings.Contains(lowerURL, kw) {
			return kw, true
		}
	}
	return "", false
}

// HasMarker reports whether attribute name is a data marker.
func (rs *RuleSet) HasMarker(name string) bool {
	_, ok := rs.markers.Get([]byte(strings.ToLower(name)))
	return ok
}

// ImageToken 返回标记广告图片的字面量，为空表示不检查背景图
func (rs *RuleSet) ImageToken() string {
	return rs.imageToken
}

// MatchNetwork checks the declarative network rules for a request of kind.
func (rs *RuleSet) MatchNetwork(url string, kind hook.Kind) (string, bool) {
	return rs.network.match(url, kind)
}

// DomainPatterns 返回规范化后的域名子串列表副本
func (rs *RuleSet) DomainPatterns() []string { return clone(rs.domains) }

// AttributeKeywords 返回规范化后的关键字列表副本
func (rs *RuleSet) AttributeKeywords() []string { return clone(rs.keywords) }

// FrameKeywords returns the full nested-frame list: every domain pattern
// followed by the frame-only keywords.
func (rs *RuleSet) FrameKeywords() []string {
	out := clone(rs.domains)
	return append(out, rs.frameKeywords...)
}

// DataMarkers 返回数据标记属性名（字典序）
func (rs *RuleSet) DataMarkers() []string {
	var out []string
	rs.markers.Root().Walk(func(k []byte, _ interface{}) bool {
		out = append(out, string(k))
		return false
	})
	return out
}

// Lists returns the accepted entries in their input form: selector keywords
// stay in AttributeKeywords and FrameKeywords holds only the frame-only
// terms. New(rs.Lists()) builds an equivalent set.
func (rs *RuleSet) Lists() Lists {
	return Lists{
		DomainPatterns:    clone(rs.source.DomainPatterns),
		AttributeKeywords: clone(rs.source.AttributeKeywords),
		DataMarkers:       clone(rs.source.DataMarkers),
		FrameKeywords:     clone(rs.source.FrameKeywords),
		AdImageToken:      rs.source.AdImageToken,
		NetworkRules:      clone(rs.source.NetworkRules),
	}
}

// Skipped returns the entries dropped while building the set.
func (rs *RuleSet) Skipped() []SkippedRule {
	out := make([]SkippedRule, len(rs.skipped))
	copy(out, rs.skipped)
	return out
}

// Count returns the number of loaded rules across all lists.
func (rs *RuleSet) Count() int {
	return len(rs.domains) + len(rs.keywords) + rs.markers.Len() + len(rs.frameKeywords) + rs.network.Count()
}

// parsePattern validates a substring pattern (domain or frame keyword).
func parsePattern(raw string) (string, error) {
	p := util.NormalizePattern(raw)
	if p == "" {
		return "", fmt.Errorf("empty pattern")
	}
	if util.HasSpaceOrControl(p) {
		return "", fmt.Errorf("pattern contains whitespace or control characters")
	}
	return p, nil
}

// parseDomain is parsePattern with a trailing root dot removed.
func parseDomain(raw string) (string, error) {
	return parsePattern(util.NormalizeDomain(raw))
}

// parseMarker validates a data-marker attribute name; "[data-ad]" is
// accepted as well as "data-ad".
func parseMarker(raw string) (string, error) {
	m := util.NormalizePattern(raw)
	if strings.HasPrefix(m, "[") {
		if !strings.HasSuffix(m, "]") {
			return "", fmt.Errorf("unterminated attribute selector")
		}
		m = strings.TrimSpace(m[1 : len(m)-1])
	}
	if m == "" {
		return "", fmt.Errorf("empty attribute name")
	}
	if strings.ContainsAny(m, "=\"'[]*^$~| \t") {
		return "", fmt.Errorf("invalid attribute name")
	}
	return m, nil
}

// parseSelector turns a keyword entry into a keyword, or into a data marker
// when it is a bare attribute selector such as [data-ad].
//
// Accepted forms: plain keyword, .class, #id, [class*="kw"], [id*="kw"],
// [attr]. Anything else is rejected; this is not a CSS engine.
func parseSelector(raw string) (keyword, marker string, err error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return "", "", fmt.Errorf("empty keyword")
	case strings.HasPrefix(s, "[class*=") || strings.HasPrefix(s, "[id*="):
		if !strings.HasSuffix(s, "]") {
			return "", "", fmt.Errorf("unterminated attribute selector")
		}
		_, value, _ := strings.Cut(s[1:len(s)-1], "*=")
		value = strings.TrimSpace(value)
		if len(value) < 2 || (value[0] != '"' && value[0] != '\'') || value[len(value)-1] != value[0] {
			return "", "", fmt.Errorf("attribute selector value must be quoted")
		}
		keyword, err = parsePattern(value[1 : len(value)-1])
		return keyword, "", err
	case strings.HasPrefix(s, "["):
		marker, err = parseMarker(s)
		return "", marker, err
	case strings.HasPrefix(s, ".") || strings.HasPrefix(s, "#"):
		keyword, err = parsePattern(s[1:])
		return keyword, "", err
	default:
		keyword, err = parsePattern(s)
		return keyword, "", err
	}
}
