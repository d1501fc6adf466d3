// Package interceptor installs the request and resource hooks that stop
// blocked network calls before they reach the host's dispatch primitives.
package interceptor

import (
	"errors"
	"fmt"
	"sync"

	"adshield/adblock"
	"adshield/hook"
	"adshield/internal/util"
	"adshield/stats"
)

// 日志中 URL 的最大长度
const maxLoggedURL = 256

// Interceptor owns the hooks it installed on one host.
type Interceptor struct {
	filter adblock.Filter
	stats  *stats.Stats

	mu        sync.Mutex
	installed bool
	restores  []hook.RestoreFunc
}

// New 创建拦截器
func New(filter adblock.Filter, st *stats.Stats) *Interceptor {
	return &Interceptor{filter: filter, stats: st}
}

// installPoint 描述宿主的一个拦截点
type installPoint struct {
	name    string
	install func(hook.InterceptFunc) (hook.RestoreFunc, bool, error)
	fn      hook.InterceptFunc
}

// Install hooks every install point host provides and returns how many were
// installed. Points the host lacks are skipped with a warning. Calling
// Install again before Uninstall does nothing and returns 0.
func (i *Interceptor) Install(host any) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.installed {
		return 0
	}
	i.installed = true

	points := []installPoint{
		{
			name: "generic request",
			install: func(fn hook.InterceptFunc) (hook.RestoreFunc, bool, error) {
				h, ok := host.(hook.GenericRequestInstaller)
				if !ok {
					return nil, false, nil
				}
				r, err := h.InstallGenericRequestHook(fn)
				return r, true, err
			},
			fn: i.interceptRequest,
		},
		{
			name: "callback request",
			install: func(fn hook.InterceptFunc) (hook.RestoreFunc, bool, error) {
				h, ok := host.(hook.CallbackRequestInstaller)
				if !ok {
					return nil, false, nil
				}
				r, err := h.InstallCallbackRequestHook(fn)
				return r, true, err
			},
			fn: i.interceptRequest,
		},
		{
			name: "resource insertion",
			install: func(fn hook.InterceptFunc) (hook.RestoreFunc, bool, error) {
				h, ok := host.(hook.ResourceInsertionInstaller)
				if !ok {
					return nil, false, nil
				}
				r, err := h.InstallResourceInsertionHook(fn)
				return r, true, err
			},
			fn: i.interceptInsertion,
		},
		{
			name: "attribute assignment",
			install: func(fn hook.InterceptFunc) (hook.RestoreFunc, bool, error) {
				h, ok := host.(hook.AttributeAssignmentInstaller)
				if !ok {
					return nil, false, nil
				}
				r, err := h.InstallAttributeAssignmentHook(fn)
				return r, true, err
			},
			fn: i.interceptAttribute,
		},
	}

	count := 0
	for _, p := range points {
		restore, present, err := p.install(p.fn)
		switch {
		case !present:
			i.warn(fmt.Sprintf("%s hook unavailable on host, skipped", p.name))
		case err != nil:
			if errors.Is(err, hook.ErrUnavailable) {
				i.warn(fmt.Sprintf("%s hook unavailable on host, skipped", p.name))
			} else {
				i.warn(fmt.Sprintf("install %s hook: %v", p.name, err))
			}
		case restore != nil:
			i.restores = append(i.restores, restore)
			count++
		}
	}
	return count
}

// Uninstall restores every hooked primitive, most recent first. Calling it
// when nothing is installed does nothing.
func (i *Interceptor) Uninstall() {
	i.mu.Lock()
	restores := i.restores
	i.restores = nil
	i.installed = false
	i.mu.Unlock()

	for j := len(restores) - 1; j >= 0; j-- {
		restores[j]()
	}
}

// Installed 报告当前是否已安装
func (i *Interceptor) Installed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.installed
}

func (i *Interceptor) warn(msg string) {
	if i.stats != nil {
		i.stats.Log(stats.CategoryWarning, msg)
	}
}

func (i *Interceptor) record(cat stats.Category, msg string) {
	if i.stats != nil {
		i.stats.Record(cat, msg)
	}
}

// interceptRequest handles both request styles: a blocked URL returns a
// BlockedError without calling proceed.
func (i *Interceptor) interceptRequest(t hook.Target, proceed func() error) error {
	if !i.filter.ClassifyRequest(t.URL, t.Kind) {
		return proceed()
	}
	i.record(stats.CategoryRequest, fmt.Sprintf("Blocked %s: %s", t.Kind, util.Truncate(t.URL, maxLoggedURL)))
	return &hook.BlockedError{URL: t.URL, Kind: t.Kind}
}

// interceptInsertion 拦截脚本与内嵌框架节点的插入
func (i *Interceptor) interceptInsertion(t hook.Target, proceed func() error) error {
	if !t.Kind.IsResource() || t.URL == "" {
		return proceed()
	}
	return i.blockResource(t, proceed)
}

// interceptAttribute 拦截脚本与内嵌框架节点的 src 赋值
func (i *Interceptor) interceptAttribute(t hook.Target, proceed func() error) error {
	if !t.Kind.IsResource() || t.Attr != "src" || t.URL == "" {
		return proceed()
	}
	return i.blockResource(t, proceed)
}

func (i *Interceptor) blockResource(t hook.Target, proceed func() error) error {
	if !i.filter.ClassifyRequest(t.URL, t.Kind) {
		return proceed()
	}
	cat := stats.CategoryScript
	if t.Kind == hook.KindFrame {
		cat = stats.CategoryFrame
	}
	i.record(cat, fmt.Sprintf("Blocked %s: %s", t.Kind, util.Truncate(t.URL, maxLoggedURL)))
	return &hook.BlockedError{URL: t.URL, Kind: t.Kind}
}
