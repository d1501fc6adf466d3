package dispatch

import (
	"context"
	"net/http"

	"adshield/hook"
)

// Request is a callback-style request: bind a URL with Open, then Send.
// Exactly one of the load or error callbacks fires per Send.
type Request struct {
	c       *Client
	method  string
	url     string
	opened  bool
	openErr error

	onLoad  func(*Response)
	onError func(error)
}

// NewRequest 创建一个回调式请求
func (c *Client) NewRequest() *Request {
	return &Request{c: c}
}

// OnLoad 设置成功回调
func (r *Request) OnLoad(fn func(*Response)) { r.onLoad = fn }

// OnError 设置失败回调
func (r *Request) OnError(fn func(error)) { r.onError = fn }

// Open binds method and url. When a hook suppresses the binding the error is
// kept and returned again by the following Send.
func (r *Request) Open(method, url string) error {
	if method == "" {
		method = http.MethodGet
	}
	r.method, r.url = method, url
	r.opened, r.openErr = false, nil

	t := hook.Target{URL: url, Method: method, Kind: hook.KindXHR}
	err := r.c.callback.Run(t, func() error {
		r.opened = true
		return nil
	})
	switch {
	case err != nil:
		r.opened = false
		r.openErr = err
	case !r.opened:
		r.openErr = ErrSuppressed
	}
	return r.openErr
}

// Send dispatches the bound request and fires one callback.
func (r *Request) Send(ctx context.Context, body []byte) error {
	if r.openErr != nil {
		r.fail(r.openErr)
		return r.openErr
	}
	if !r.opened {
		r.fail(ErrNotOpened)
		return ErrNotOpened
	}

	resp, err := r.c.do(ctx, r.method, r.url, body)
	if err != nil {
		r.fail(err)
		return err
	}
	if r.onLoad != nil {
		r.onLoad(resp)
	}
	return nil
}

func (r *Request) fail(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}
