package resolver

import "github.com/go-rod/rod"

// rodElement is the production domElement, wrapping a resolved *rod.Element.
type rodElement struct {
	el *rod.Element
}

func (r rodElement) Unwrap() interface{} { return r.el }

// Rod recovers the underlying *rod.Element from a Result, for callers
// (the executor) that need to act on it. Panics if Element is not a
// rod-backed element, which only happens if a test fake leaked past the
// resolver boundary.
func (r Result) Rod() *rod.Element {
	el, ok := r.Element.Unwrap().(*rod.Element)
	if !ok {
		panic("resolver: Result.Element is not rod-backed")
	}
	return el
}
