package ruleset

import (
	"adshield/config"
)

// Lists is the plain-data form of a rule set, as read from configuration or
// rule files.
type Lists struct {
	DomainPatterns    []string
	AttributeKeywords []string
	DataMarkers       []string
	FrameKeywords     []string
	AdImageToken      string
	NetworkRules      []string
}

// 默认广告服务器，合并自网页版与播放器版拦截器，并加入 YouTube 广告接口
var defaultDomainPatterns = []string{
	"doubleclick.net",
	"googleads",
	"googlesyndication",
	"facebook.com/ads",
	"adsystem",
	"adservice",
	"adserver",
	"googletagservices",
	"gstatic.com/cv/js",
	"pagead2.googlesyndication",
	"example-ads.com",
	"youtube.com/api/stats/ads",
	"youtube.com/pagead/",
}

var defaultAttributeKeywords = []string{
	`[class*="ad"]`,
	`[id*="ad"]`,
	`[class*="banner"]`,
	`[class*="sponsor"]`,
	".ads",
	".ad-container",
	".ad-banner",
	".ad-wrapper",
	".sponsored",
	".promo-banner",
	".ytp-ad-module",
	".ytp-ad-player-overlay",
	".video-ads",
}

var defaultDataMarkers = []string{"data-ad", "data-adclient"}

var defaultFrameKeywords = []string{"ad", "ads", "banner", "sponsor", "pubads"}

const defaultAdImageToken = "ad"

// 后台拦截规则，按资源类型生效
var defaultNetworkRules = []string{
	"||doubleclick.net^$script,image,xmlhttprequest",
	"||googleads.$script,image,xmlhttprequest",
	"||googlesyndication.com^$script,image,xmlhttprequest",
	"||adsystem.$script,image,xmlhttprequest",
}

// DefaultLists returns a fresh copy of the built-in rules.
func DefaultLists() Lists {
	return Lists{
		DomainPatterns:    clone(defaultDomainPatterns),
		AttributeKeywords: clone(defaultAttributeKeywords),
		DataMarkers:       clone(defaultDataMarkers),
		FrameKeywords:     clone(defaultFrameKeywords),
		AdImageToken:      defaultAdImageToken,
		NetworkRules:      clone(defaultNetworkRules),
	}
}

// FromConfig converts the rules section of the config. A list that is absent
// (nil) falls back to the built-in default; an explicitly empty list stays
// empty.
func FromConfig(cfg *config.RulesConfig) Lists {
	l := DefaultLists()
	if cfg == nil {
		return l
	}
	if cfg.DomainPatterns != nil {
		l.DomainPatterns = clone(cfg.DomainPatterns)
	}
	if cfg.AttributeKeywords != nil {
		l.AttributeKeywords = clone(cfg.AttributeKeywords)
	}
	if cfg.DataMarkers != nil {
		l.DataMarkers = clone(cfg.DataMarkers)
	}
	if cfg.FrameKeywords != nil {
		l.FrameKeywords = clone(cfg.FrameKeywords)
	}
	if cfg.AdImageToken != "" {
		l.AdImageToken = cfg.AdImageToken
	}
	if cfg.NetworkRules != nil {
		l.NetworkRules = clone(cfg.NetworkRules)
	}
	return l
}

// Config converts l back to the rules section of the config. Empty lists
// are kept empty rather than nil so they do not read back as defaults.
func (l Lists) Config() config.RulesConfig {
	return config.RulesConfig{
		DomainPatterns:    nonNil(l.DomainPatterns),
		AttributeKeywords: nonNil(l.AttributeKeywords),
		DataMarkers:       nonNil(l.DataMarkers),
		FrameKeywords:     nonNil(l.FrameKeywords),
		AdImageToken:      l.AdImageToken,
		NetworkRules:      nonNil(l.NetworkRules),
	}
}

// Merge appends the entries of extra to l. The image token of l wins unless
// it is empty.
func (l Lists) Merge(extra Lists) Lists {
	out := Lists{
		DomainPatterns:    append(clone(l.DomainPatterns), extra.DomainPatterns...),
		AttributeKeywords: append(clone(l.AttributeKeywords), extra.AttributeKeywords...),
		DataMarkers:       append(clone(l.DataMarkers), extra.DataMarkers...),
		FrameKeywords:     append(clone(l.FrameKeywords), extra.FrameKeywords...),
		AdImageToken:      l.AdImageToken,
		NetworkRules:      append(clone(l.NetworkRules), extra.NetworkRules...),
	}
	if out.AdImageToken == "" {
		out.AdImageToken = extra.AdImageToken
	}
	return out
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return clone(s)
}
