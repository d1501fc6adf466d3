package webapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"adshield/dispatch"
	"adshield/hook"
	"adshield/logger"
)

type fetchRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	// Style 为 "fetch"（默认）或 "xhr"
	Style string `json:"style"`
	Body  string `json:"body"`
}

type fetchResult struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status"`
	Bytes      int    `json:"bytes"`
}

// handleFetch 通过宿主的请求层发出请求，被拦截时返回 403
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var payload fetchRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.URL == "" {
		s.writeJSONError(w, "URL cannot be empty", http.StatusBadRequest)
		return
	}

	var body []byte
	if payload.Body != "" {
		body = []byte(payload.Body)
	}

	var (
		resp *dispatch.Response
		err  error
	)
	if strings.EqualFold(payload.Style, "xhr") {
		resp, err = s.sendCallbackRequest(r.Context(), payload.Method, payload.URL, body)
	} else {
		resp, err = s.host.Client.Fetch(r.Context(), payload.Method, payload.URL, body)
	}

	switch {
	case errors.Is(err, hook.ErrBlocked):
		s.writeJSONError(w, err.Error(), http.StatusForbidden)
	case err != nil:
		logger.Warnf("[Host] Request to %s failed: %v", payload.URL, err)
		s.writeJSONError(w, "Request failed: "+err.Error(), http.StatusBadGateway)
	default:
		s.writeJSONSuccess(w, "Request completed", fetchResult{
			URL:        resp.URL,
			StatusCode: resp.StatusCode,
			Bytes:      len(resp.Body),
		})
	}
}

// sendCallbackRequest 用回调式请求发出，并把回调结果转为返回值
func (s *Server) sendCallbackRequest(ctx context.Context, method, url string, body []byte) (*dispatch.Response, error) {
	var (
		loaded *dispatch.Response
		failed error
	)
	req := s.host.Client.NewRequest()
	req.OnLoad(func(r *dispatch.Response) { loaded = r })
	req.OnError(func(err error) { failed = err })

	// Open 被拦截时 Send 会再次返回同一错误并触发 OnError
	_ = req.Open(method, url)
	if err := req.Send(ctx, body); err != nil {
		return nil, err
	}
	if failed != nil {
		return nil, failed
	}
	return loaded, nil
}

// handlePage GET 渲染当前宿主页面；POST 把请求体中的 HTML 片段插入 body，
// 投递一次变更批次后返回过滤结果
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.hostMu.Lock()
		var buf bytes.Buffer
		err := s.host.Document.Render(&buf)
		s.hostMu.Unlock()
		if err != nil {
			s.writeJSONError(w, "Failed to render page: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())

	case http.MethodPost:
		var payload struct {
			HTML string `json:"html"`
		}
		if err := decodeJSON(w, r, &payload); err != nil {
			s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(payload.HTML) == "" {
			s.writeJSONError(w, "HTML cannot be empty", http.StatusBadRequest)
			return
		}

		s.hostMu.Lock()
		before := s.ctrl.TotalBlocked()
		doc := s.host.Document
		insertErr := doc.AppendHTML(doc.Body(), payload.HTML)
		records := doc.Flush()
		var buf bytes.Buffer
		renderErr := doc.Render(&buf)
		after := s.ctrl.TotalBlocked()
		s.hostMu.Unlock()

		if renderErr != nil {
			s.writeJSONError(w, "Failed to render page: "+renderErr.Error(), http.StatusInternalServerError)
			return
		}
		result := map[string]interface{}{
			"records": records,
			"blocked": after - before,
			"html":    buf.String(),
		}
		// 被插入 hook 拦截的节点不算请求失败
		if insertErr != nil && !errors.Is(insertErr, hook.ErrBlocked) {
			s.writeJSONError(w, "Failed to insert HTML: "+insertErr.Error(), http.StatusBadRequest)
			return
		}
		s.writeJSONSuccess(w, "Page updated", result)

	default:
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
	}
}
