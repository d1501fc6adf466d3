package webapi

import (
	"adshield/dispatch"
	"adshield/dom"
	"adshield/hook"
)

// Host is the in-process environment the filter runs against: one content
// tree and one request dispatcher.
type Host struct {
	Client   *dispatch.Client
	Document *dom.Document
}

// NewHost 创建宿主环境，doer 为 nil 时使用默认 http.Client
func NewHost(doer dispatch.Doer, doc *dom.Document) *Host {
	if doc == nil {
		doc = dom.NewDocument()
	}
	return &Host{Client: dispatch.NewClient(doer), Document: doc}
}

func (h *Host) InstallGenericRequestHook(fn hook.InterceptFunc) (hook.RestoreFunc, error) {
	return h.Client.InstallGenericRequestHook(fn)
}

func (h *Host) InstallCallbackRequestHook(fn hook.InterceptFunc) (hook.RestoreFunc, error) {
	return h.Client.InstallCallbackRequestHook(fn)
}

func (h *Host) InstallResourceInsertionHook(fn hook.InterceptFunc) (hook.RestoreFunc, error) {
	return h.Document.InstallResourceInsertionHook(fn)
}

func (h *Host) InstallAttributeAssignmentHook(fn hook.InterceptFunc) (hook.RestoreFunc, error) {
	return h.Document.InstallAttributeAssignmentHook(fn)
}

// HookCount 返回宿主上已安装的 hook 总数
func (h *Host) HookCount() int {
	return h.Client.HookCount() + h.Document.HookCount()
}
