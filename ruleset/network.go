package ruleset

import (
	"strings"

	"github.com/AdguardTeam/urlfilter"
	"github.com/AdguardTeam/urlfilter/filterlist"
	urlrules "github.com/AdguardTeam/urlfilter/rules"

	"adshield/hook"
)

const networkListID = 1

// networkRules wraps an urlfilter network engine built from AdGuard-syntax
// rules. A nil *networkRules matches nothing.
type networkRules struct {
	engine    *urlfilter.NetworkEngine
	ruleCount int
	lines     []string
}

func compileNetworkRules(lines []string) (*networkRules, []SkippedRule) {
	var valid []string
	var skipped []SkippedRule
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}
		if _, err := urlrules.NewNetworkRule(line, networkListID); err != nil {
			skipped = append(skipped, SkippedRule{Field: FieldNetwork, Entry: raw, Reason: err.Error()})
			continue
		}
		valid = append(valid, line)
	}
	if len(valid) == 0 {
		return nil, skipped
	}

	stringList := filterlist.NewString(&filterlist.StringConfig{
		RulesText:      strings.Join(valid, "\n"),
		ID:             networkListID,
		IgnoreCosmetic: true,
	})
	storage, err := filterlist.NewRuleStorage([]filterlist.Interface{stringList})
	if err != nil {
		for _, line := range valid {
			skipped = append(skipped, SkippedRule{Field: FieldNetwork, Entry: line, Reason: err.Error()})
		}
		return nil, skipped
	}

	return &networkRules{
		engine:    urlfilter.NewNetworkEngine(storage),
		ruleCount: len(valid),
		lines:     valid,
	}, skipped
}

// requestType 将资源类型映射为 urlfilter 的请求类型
func requestType(kind hook.Kind) urlrules.RequestType {
	switch kind {
	case hook.KindScript:
		return urlrules.TypeScript
	case hook.KindFrame:
		return urlrules.TypeSubdocument
	case hook.KindFetch, hook.KindXHR:
		return urlrules.TypeXmlhttprequest
	case hook.KindImage:
		return urlrules.TypeImage
	default:
		return urlrules.TypeOther
	}
}

func (n *networkRules) match(url string, kind hook.Kind) (rule string, ok bool) {
	if n == nil || n.engine == nil || url == "" {
		return "", false
	}
	// urlfilter 对异常 URL 的处理不在我们控制之内，出错一律视为未命中
	defer func() {
		if recover() != nil {
			rule, ok = "", false
		}
	}()

	result, matched := n.engine.Match(urlrules.NewRequest(url, "", requestType(kind)))
	if !matched || result == nil {
		return "", false
	}
	ruleText := result.Text()
	if strings.HasPrefix(ruleText, "@@") {
		return "", false
	}
	return ruleText, true
}

// Count 返回网络规则数量
func (n *networkRules) Count() int {
	if n == nil {
		return 0
	}
	return n.ruleCount
}

// Lines 返回已编译的规则文本
func (n *networkRules) Lines() []string {
	if n == nil {
		return nil
	}
	return clone(n.lines)
}
