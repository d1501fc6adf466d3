// Package hook defines the interception contract between the filtering core
// and the host that owns the real dispatch primitives.
//
// A host exposes install points; each accepts an InterceptFunc and returns a
// RestoreFunc. The InterceptFunc decides per call whether the original
// primitive runs (by calling proceed) or is suppressed (by returning without
// calling it). Hosts never hand the core their primitives directly.
package hook

import (
	"errors"
	"fmt"
	"sync"
)

// Kind 表示一次调用所加载资源的类型
type Kind int

const (
	KindOther Kind = iota
	KindFetch      // 通用延迟请求 (fetch)
	KindXHR        // 回调式请求 (XMLHttpRequest)
	KindScript     // 脚本节点
	KindFrame      // 内嵌框架节点 (iframe/frame)
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindXHR:
		return "xhr"
	case KindScript:
		return "script"
	case KindFrame:
		return "frame"
	case KindImage:
		return "image"
	default:
		return "other"
	}
}

// IsResource reports whether the kind loads a sub-resource through a tree node.
func (k Kind) IsResource() bool {
	return k == KindScript || k == KindFrame
}

// Target describes the pending call handed to an InterceptFunc.
type Target struct {
	URL    string // 目标地址；属性赋值时为新的属性值
	Method string // 仅请求类调用
	Kind   Kind
	// Attr 属性赋值时的属性名，插入节点时为空
	Attr string
	// Node 资源节点的宿主句柄，仅在回调期间有效
	Node any
}

// InterceptFunc inspects a pending call. Calling proceed forwards to the
// original primitive; returning without calling it suppresses the effect.
type InterceptFunc func(t Target, proceed func() error) error

// RestoreFunc removes an installed hook. Calling it more than once is a no-op.
type RestoreFunc func()

// ErrUnavailable is returned by an install point the host cannot provide.
var ErrUnavailable = errors.New("hook: install point unavailable")

// ErrBlocked is matched by every BlockedError.
var ErrBlocked = errors.New("request blocked")

// BlockedError is returned to the caller of a suppressed call.
type BlockedError struct {
	URL  string
	Kind Kind
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("ad %s blocked: %s", e.Kind, e.URL)
}

func (e *BlockedError) Is(target error) bool {
	return target == ErrBlocked
}

// Install points. A host implements the subset it supports.
type (
	GenericRequestInstaller interface {
		InstallGenericRequestHook(fn InterceptFunc) (RestoreFunc, error)
	}
	CallbackRequestInstaller interface {
		InstallCallbackRequestHook(fn InterceptFunc) (RestoreFunc, error)
	}
	ResourceInsertionInstaller interface {
		InstallResourceInsertionHook(fn InterceptFunc) (RestoreFunc, error)
	}
	AttributeAssignmentInstaller interface {
		InstallAttributeAssignmentHook(fn InterceptFunc) (RestoreFunc, error)
	}
)

// Chain is the host-side list of hooks installed on one primitive.
// Hooks run most-recently-installed first; each decides whether the next
// one (and finally the primitive) runs.
type Chain struct {
	mu      sync.RWMutex
	entries []chainEntry
	nextID  uint64
}

type chainEntry struct {
	id uint64
	fn InterceptFunc
}

// Install adds fn to the chain and returns the function that removes it.
func (c *Chain) Install(fn InterceptFunc) RestoreFunc {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.entries = append(c.entries, chainEntry{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(id) })
	}
}

func (c *Chain) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.entries {
		if e.id == id {
			c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
			return
		}
	}
}

// Len 返回当前已安装的 hook 数量
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Run passes t through every installed hook and finally calls primitive.
// With no hooks installed primitive is called directly.
func (c *Chain) Run(t Target, primitive func() error) error {
	c.mu.RLock()
	entries := make([]chainEntry, len(c.entries))
	copy(entries, c.entries)
	c.mu.RUnlock()

	next := primitive
	for _, e := range entries {
		fn, proceed := e.fn, next
		next = func() error { return fn(t, proceed) }
	}
	return next()
}
