// Package dispatch is the host's outbound request layer: a fetch-like call
// and an XHR-like request object over net/http, each with a hook chain the
// filtering core installs into.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"adshield/hook"
)

const maxBodySize = 10 << 20

var (
	// ErrSuppressed is returned when a hook swallowed the call without
	// reporting why.
	ErrSuppressed = errors.New("dispatch: request suppressed")
	// ErrNotOpened is returned by Send on a request that was never opened.
	ErrNotOpened = errors.New("dispatch: request not opened")
)

// Doer performs an HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response 请求结果
type Response struct {
	URL        string      `json:"url"`
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"-"`
}

// Client dispatches requests through its hook chains.
type Client struct {
	doer       Doer
	generic    hook.Chain
	callback   hook.Chain
	dispatched atomic.Int64
}

// NewClient 创建请求客户端，doer 为 nil 时使用默认的 http.Client
func NewClient(doer Doer) *Client {
	if doer == nil {
		doer = defaultHTTPClient()
	}
	return &Client{doer: doer}
}

func defaultHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   15 * time.Second, // 默认超时，可被 context 覆盖
	}
}

// InstallGenericRequestHook installs fn in front of Fetch.
func (c *Client) InstallGenericRequestHook(fn hook.InterceptFunc) (hook.RestoreFunc, error) {
	return c.generic.Install(fn), nil
}

// InstallCallbackRequestHook installs fn in front of Request.Open.
func (c *Client) InstallCallbackRequestHook(fn hook.InterceptFunc) (hook.RestoreFunc, error) {
	return c.callback.Install(fn), nil
}

// HookCount 返回两条 hook 链上已安装的数量
func (c *Client) HookCount() int {
	return c.generic.Len() + c.callback.Len()
}

// Dispatched 返回实际发往网络的请求数
func (c *Client) Dispatched() int64 {
	return c.dispatched.Load()
}

// Fetch sends a request after it passes the generic hook chain. A blocked
// request returns the hook's error and never reaches the network.
func (c *Client) Fetch(ctx context.Context, method, url string, body []byte) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}

	var resp *Response
	t := hook.Target{URL: url, Method: method, Kind: hook.KindFetch}
	err := c.generic.Run(t, func() error {
		r, err := c.do(ctx, method, url, body)
		resp = r
		return err
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrSuppressed
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	c.dispatched.Add(1)
	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		URL:        url,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
