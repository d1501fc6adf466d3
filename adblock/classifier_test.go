package adblock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"adshield/dom"
	"adshield/hook"
	"adshield/ruleset"
)

// fakeNode is a minimal dom.Node for classification tests.
type fakeNode struct {
	tag   string
	attrs map[string]string
	bg    string
}

func (n *fakeNode) Tag() string { return n.tag }
func (n *fakeNode) Attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}
func (n *fakeNode) AttrNames() []string {
	names := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		names = append(names, k)
	}
	return names
}
func (n *fakeNode) BackgroundImage() string { return n.bg }
func (n *fakeNode) Children() []dom.Node    { return nil }
func (n *fakeNode) IsConnected() bool       { return true }

// panicNode simulates a host accessor failing mid-inspection.
type panicNode struct{ fakeNode }

func (n *panicNode) Attr(name string) (string, bool) { panic("host node destroyed") }

func testRules() *ruleset.RuleSet {
	return ruleset.New(ruleset.Lists{
		DomainPatterns:    []string{"doubleclick.net", "example-ads.com"},
		AttributeKeywords: []string{"banner", "sponsor"},
		DataMarkers:       []string{"data-ad", "data-adclient"},
		FrameKeywords:     []string{"adframe"},
		AdImageToken:      "ad",
	})
}

func TestClassifyURL(t *testing.T) {
	c := NewClassifier(testRules())

	tests := []struct {
		url     string
		blocked bool
	}{
		{"https://ad.doubleclick.net/x", true},
		{"https://example.com/x", false},
		{"HTTPS://AD.DOUBLECLICK.NET/X", true},
		{"https://example.com/path/doubleclick.net", true}, // substring match anywhere
		{"", false},
		{"not a url at all", false},
	}

	for _, tt := range tests {
		if got := c.ClassifyURL(tt.url); got != tt.blocked {
			t.Errorf("ClassifyURL(%q): expected %v, got %v", tt.url, tt.blocked, got)
		}
	}
}

func TestClassifyURLIsPure(t *testing.T) {
	c := NewClassifier(testRules())
	urls := []string{"https://ad.doubleclick.net/x", "https://example.com/x", ""}
	for _, u := range urls {
		first := c.ClassifyURL(u)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, c.ClassifyURL(u), "url %q", u)
		}
	}
	assert.Equal(t, []string{"doubleclick.net", "example-ads.com"}, c.Rules().DomainPatterns())
}

func TestClassifyFrame(t *testing.T) {
	c := NewClassifier(testRules())
	assert.True(t, c.ClassifyFrame("https://pubads.g.doubleclick.net/gampad/x"))
	assert.True(t, c.ClassifyFrame("https://cdn.example/adframe.html"), "frame-only keyword")
	assert.False(t, c.ClassifyURL("https://cdn.example/adframe.html"), "frame keywords do not apply to plain URLs")
	assert.False(t, c.ClassifyFrame("https://www.youtube.com/embed/abc"))
	assert.False(t, c.ClassifyFrame(""))
}

func TestClassifyNode(t *testing.T) {
	c := NewClassifier(testRules())

	tests := []struct {
		name     string
		node     dom.Node
		blocked  bool
		category Category
	}{
		{
			name:     "class keyword",
			node:     &fakeNode{tag: "div", attrs: map[string]string{"class": "top-banner-ad"}},
			blocked:  true,
			category: CategoryElement,
		},
		{
			name:     "id keyword case-insensitive",
			node:     &fakeNode{tag: "div", attrs: map[string]string{"id": "SponsorBox"}},
			blocked:  true,
			category: CategoryElement,
		},
		{
			name:     "data marker",
			node:     &fakeNode{tag: "ins", attrs: map[string]string{"data-adclient": ""}},
			blocked:  true,
			category: CategoryElement,
		},
		{
			name:     "ad background image",
			node:     &fakeNode{tag: "div", bg: "url(/img/AD-1.png)"},
			blocked:  true,
			category: CategoryElement,
		},
		{
			name:     "blocked frame source",
			node:     &fakeNode{tag: "iframe", attrs: map[string]string{"src": "https://pubads.g.doubleclick.net/gampad/x"}},
			blocked:  true,
			category: CategoryFrame,
		},
		{
			name:     "clean frame",
			node:     &fakeNode{tag: "iframe", attrs: map[string]string{"src": "https://www.youtube.com/embed/abc"}},
			blocked:  false,
			category: CategoryFrame,
		},
		{
			name:     "clean script",
			node:     &fakeNode{tag: "script", attrs: map[string]string{"src": "https://cdn.example/app.js"}},
			blocked:  false,
			category: CategoryScript,
		},
		{
			name:     "clean element",
			node:     &fakeNode{tag: "div", attrs: map[string]string{"class": "content", "id": "main"}},
			blocked:  false,
			category: CategoryElement,
		},
		{
			name:     "panicking node",
			node:     &panicNode{fakeNode{tag: "div"}},
			blocked:  false,
			category: CategoryElement,
		},
		{
			name:     "nil node",
			node:     nil,
			blocked:  false,
			category: CategoryElement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.node)
			assert.Equal(t, tt.blocked, v.Blocked)
			assert.Equal(t, tt.category, v.Category)
			assert.Equal(t, tt.blocked, c.ClassifyNode(tt.node))
			if tt.blocked {
				assert.NotEmpty(t, v.Reason)
			}
		})
	}
}

func TestClassifyNodeWithoutImageToken(t *testing.T) {
	c := NewClassifier(ruleset.New(ruleset.Lists{AttributeKeywords: []string{"banner"}}))
	assert.False(t, c.ClassifyNode(&fakeNode{tag: "div", bg: "url(/ad.png)"}))
}

func TestClassifyRequest(t *testing.T) {
	c := NewClassifier(ruleset.New(ruleset.Lists{
		DomainPatterns: []string{"example-ads.com"},
		FrameKeywords:  []string{"sponsor"},
		NetworkRules:   []string{"||tracker.example^$script"},
	}))

	assert.True(t, c.ClassifyRequest("https://example-ads.com/test", hook.KindFetch))
	assert.True(t, c.ClassifyRequest("https://tracker.example/t.js", hook.KindScript))
	assert.False(t, c.ClassifyRequest("https://tracker.example/t.js", hook.KindXHR))
	assert.True(t, c.ClassifyRequest("https://cdn.example/sponsor.html", hook.KindFrame))
	assert.False(t, c.ClassifyRequest("https://cdn.example/sponsor.js", hook.KindScript))
	assert.False(t, c.ClassifyRequest("", hook.KindFetch))

	rule, ok := c.Explain("https://tracker.example/t.js", hook.KindScript)
	assert.True(t, ok)
	assert.Equal(t, "||tracker.example^$script", rule)
}

func TestSwapTakesEffectImmediately(t *testing.T) {
	c := NewClassifier(testRules())
	assert.False(t, c.ClassifyURL("https://new-ads.example/x"))

	old := c.Swap(ruleset.New(ruleset.Lists{DomainPatterns: []string{"doubleclick.net", "new-ads.example"}}))
	assert.NotNil(t, old)
	assert.True(t, c.ClassifyURL("https://new-ads.example/x"))

	c.Swap(nil)
	assert.False(t, c.ClassifyURL("https://ad.doubleclick.net/x"), "nil swaps in an empty set")
}

func TestConcurrentSwapSeesWholeRuleSets(t *testing.T) {
	a := ruleset.New(ruleset.Lists{DomainPatterns: []string{"alpha.example", "beta.example"}})
	b := ruleset.New(ruleset.Lists{DomainPatterns: []string{"gamma.example"}})
	c := NewClassifier(a)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				c.Swap(b)
			} else {
				c.Swap(a)
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		rs := c.Rules()
		alpha, _ := rs.MatchDomain("alpha.example")
		beta, _ := rs.MatchDomain("beta.example")
		// alpha and beta always travel together
		assert.Equal(t, alpha != "", beta != "")
	}
	close(stop)
	wg.Wait()
}
