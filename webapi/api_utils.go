package webapi

import (
	"encoding/json"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"adshield/config"
)

const maxRequestBody = 4 << 20

// writeJSONError 写入 JSON 错误响应
func (s *Server) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Message: message,
	})
}

// writeJSONSuccess 写入 JSON 成功响应
func (s *Server) writeJSONSuccess(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// decodeJSON 解析请求体，空请求体视为零值
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v)
}

// corsMiddleware CORS 中间件
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loadConfig 读取配置文件，未设置路径时返回内存中的配置
func (s *Server) loadConfig() (*config.Config, error) {
	if s.configPath == "" {
		return s.cfg, nil
	}
	return config.LoadConfig(s.configPath)
}

// writeConfigFile 写入配置文件
func (s *Server) writeConfigFile(cfg *config.Config) error {
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if s.configPath == "" {
		return nil
	}
	return os.WriteFile(s.configPath, yamlData, 0644)
}
