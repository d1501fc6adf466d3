package webapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"adshield/config"
	"adshield/dom"
	"adshield/hook"
	"adshield/internal/util"
	"adshield/lifecycle"
	"adshield/logger"
	"adshield/ruleset"
)

// 与页面测试按钮一致的合成广告元素
const probeClass = "test-ad-banner"

// handleAdBlockStatus 处理广告拦截状态请求
func (s *Server) handleAdBlockStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	rs := s.ctrl.Classifier().Rules()
	s.writeJSONSuccess(w, "AdBlock status retrieved successfully", map[string]interface{}{
		"state":         s.ctrl.State().String(),
		"enabled":       s.ctrl.State() == lifecycle.Enabled,
		"stats":         s.ctrl.Stats(),
		"total_blocked": s.ctrl.TotalBlocked(),
		"rule_count":    rs.Count(),
		"skipped_rules": len(rs.Skipped()),
		"hooks":         s.host.HookCount(),
	})
}

// handleAdBlockToggle 切换或设置拦截状态，并写回配置文件
func (s *Server) handleAdBlockToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// 启用时会扫描宿主树
	s.hostMu.Lock()
	switch {
	case payload.Enabled == nil:
		s.ctrl.Toggle()
	case *payload.Enabled:
		s.ctrl.Enable()
	default:
		s.ctrl.Disable()
	}
	s.hostMu.Unlock()

	state := s.ctrl.State()
	enabled := state == lifecycle.Enabled

	s.cfgMutex.Lock()
	defer s.cfgMutex.Unlock()
	cfg, err := s.loadConfig()
	if err != nil {
		logger.Errorf("[AdBlock] Failed to load config during toggle: %v", err)
		s.writeJSONError(w, "Failed to load config: "+err.Error(), http.StatusInternalServerError)
		return
	}
	cfg.AdBlock.Enable = enabled
	if err := s.writeConfigFile(cfg); err != nil {
		logger.Errorf("[AdBlock] Failed to write config file during toggle: %v", err)
		s.writeJSONError(w, "Failed to write config file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	logger.Infof("[AdBlock] Status toggled to: %s", state)
	s.writeJSONSuccess(w, "AdBlock status updated successfully", map[string]interface{}{
		"state":   state.String(),
		"enabled": enabled,
	})
}

// handleAdBlockReload 从配置文件和规则文件重新构建规则集
// 请求体为纯文本时，每行作为一条附加规则
func (s *Server) handleAdBlockReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	s.cfgMutex.Lock()
	cfg, err := s.loadConfig()
	s.cfgMutex.Unlock()
	if err != nil {
		logger.Errorf("[AdBlock] Failed to load config during reload: %v", err)
		s.writeJSONError(w, "Failed to load config: "+err.Error(), http.StatusInternalServerError)
		return
	}

	lists := ruleset.FromConfig(&cfg.Rules)
	if len(cfg.AdBlock.RuleFiles) > 0 {
		extra, err := ruleset.LoadFiles(r.Context(), cfg.AdBlock.RuleFiles)
		if err != nil {
			logger.Errorf("[AdBlock] Failed to load rule files: %v", err)
			s.writeJSONError(w, "Failed to load rule files: "+err.Error(), http.StatusInternalServerError)
			return
		}
		lists = lists.Merge(extra)
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		lists = lists.Merge(ruleset.ParseLines(strings.Split(string(body), "\n")))
	}

	rs := ruleset.New(lists)
	s.ctrl.ReloadRules(rs)

	logger.Infof("[AdBlock] Rules reloaded: %d entries, %d skipped", rs.Count(), len(rs.Skipped()))
	s.writeJSONSuccess(w, "Rules reloaded successfully", map[string]interface{}{
		"rule_count": rs.Count(),
		"skipped":    rs.Skipped(),
	})
}

// handleAdBlockRules GET 返回当前规则，PUT 保存新的规则段并立即生效
func (s *Server) handleAdBlockRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSONSuccess(w, "Rules retrieved successfully", s.ctrl.Classifier().Rules().Lists().Config())
	case http.MethodPut:
		var payload config.RulesConfig
		if err := decodeJSON(w, r, &payload); err != nil {
			s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		s.cfgMutex.Lock()
		defer s.cfgMutex.Unlock()
		cfg, err := s.loadConfig()
		if err != nil {
			s.writeJSONError(w, "Failed to load config: "+err.Error(), http.StatusInternalServerError)
			return
		}
		cfg.Rules = payload
		if err := s.writeConfigFile(cfg); err != nil {
			logger.Errorf("[AdBlock] Failed to write config file: %v", err)
			s.writeJSONError(w, "Failed to write config file: "+err.Error(), http.StatusInternalServerError)
			return
		}

		rs, err := ruleset.Load(r.Context(), cfg)
		if err != nil {
			s.writeJSONError(w, "Failed to load rules: "+err.Error(), http.StatusInternalServerError)
			return
		}
		s.ctrl.ReloadRules(rs)
		logger.Infof("[AdBlock] Rules updated: %d entries", rs.Count())
		s.writeJSONSuccess(w, "Rules updated successfully", map[string]interface{}{
			"rule_count": rs.Count(),
			"skipped":    rs.Skipped(),
		})
	default:
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
	}
}

// handleAdBlockTest 用给定 URL 和一个合成广告元素检验当前规则
func (s *Server) handleAdBlockTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	payload := struct {
		URL   string `json:"url"`
		Class string `json:"class"`
	}{
		URL:   r.URL.Query().Get("url"),
		Class: r.URL.Query().Get("class"),
	}
	if r.Method == http.MethodPost {
		if err := decodeJSON(w, r, &payload); err != nil {
			s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if payload.Class == "" {
		payload.Class = probeClass
	}

	c := s.ctrl.Classifier()
	result := map[string]interface{}{}
	if payload.URL != "" {
		rule, requestBlocked := c.Explain(payload.URL, hook.KindFetch)
		result["url"] = payload.URL
		result["host"] = util.HostOf(payload.URL)
		result["url_blocked"] = c.ClassifyURL(payload.URL)
		result["frame_blocked"] = c.ClassifyFrame(payload.URL)
		result["request_blocked"] = requestBlocked
		result["rule"] = rule
	}

	// 合成元素不挂在宿主树上，不会触发拦截 hook
	probe := dom.NewDocument()
	el := probe.CreateElement("div")
	probe.SetAttribute(el, "class", payload.Class)
	v := c.Classify(el)
	result["element_class"] = payload.Class
	result["element_blocked"] = v.Blocked
	result["element_reason"] = v.Reason

	s.writeJSONSuccess(w, "AdBlock test complete", result)
}

// handleAdBlockEvents GET 返回事件日志（支持 since 参数增量获取），DELETE 清空日志
func (s *Server) handleAdBlockEvents(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.Telemetry()
	switch r.Method {
	case http.MethodGet:
		since, _ := strconv.Atoi(r.URL.Query().Get("since"))
		if since < 0 {
			since = 0
		}
		events := st.EventsSince(since)
		s.writeJSONSuccess(w, "Events retrieved successfully", map[string]interface{}{
			"events": events,
			"next":   since + len(events),
		})
	case http.MethodDelete:
		n := st.ClearEvents()
		logger.Infof("[AdBlock] Cleared %d log entries", n)
		s.writeJSONSuccess(w, "Events cleared", map[string]interface{}{"cleared": n})
	default:
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
	}
}
