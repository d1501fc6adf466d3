package webapi

import (
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"adshield/stats"
)

// 获取 CPU 使用率的最长等待时间，避免阻塞统计接口
const cpuSampleTimeout = 100 * time.Millisecond

// handleStats 返回拦截计数与系统资源信息
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	st := s.ctrl.Telemetry()
	s.writeJSONSuccess(w, "Stats retrieved successfully", map[string]interface{}{
		"blocked":        s.ctrl.Stats(),
		"total_blocked":  s.ctrl.TotalBlocked(),
		"events":         len(st.Events()),
		"state":          s.ctrl.State().String(),
		"dispatched":     s.host.Client.Dispatched(),
		"system_stats":   stats.ReadSystemStats(cpuSampleTimeout),
		"uptime_seconds": st.Uptime().Seconds(),
	})
}

// handleMetrics 以 Prometheus 文本格式输出计数器与进程指标
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.ctrl.Telemetry().WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}
