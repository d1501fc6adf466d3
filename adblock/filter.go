package adblock

import (
	"adshield/dom"
	"adshield/hook"
)

// Filter is the classification surface consumed by the interceptor and the
// scanner. *Classifier implements it.
type Filter interface {
	ClassifyURL(url string) bool
	ClassifyFrame(frameURL string) bool
	ClassifyNode(node dom.Node) bool
	ClassifyRequest(url string, kind hook.Kind) bool
	Classify(node dom.Node) Verdict
	// IsMarker reports whether name is a configured data-marker attribute.
	IsMarker(name string) bool
}

var _ Filter = (*Classifier)(nil)
