package config

import (
	"gopkg.in/yaml.v3"
)

// setDefaultValues 设置配置文件中缺失字段的默认值
func setDefaultValues(cfg *Config, rawData []byte) {
	setAdBlockDefaults(cfg, rawData)
	setWebUIDefaults(cfg, rawData)
	setSystemDefaults(cfg)
}

// explicitFlags 记录配置文件中显式写出的开关
// bool 字段在 yaml 缺省时为 false，无法区分“省略”和“显式关闭”
type explicitFlags struct {
	AdBlock struct {
		Enable *bool `yaml:"enable"`
	} `yaml:"adblock"`
	WebUI struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"webui"`
}

func parseExplicitFlags(rawData []byte) explicitFlags {
	var flags explicitFlags
	// 解析失败时按全部省略处理
	_ = yaml.Unmarshal(rawData, &flags)
	return flags
}

// setAdBlockDefaults 设置广告拦截配置的默认值
func setAdBlockDefaults(cfg *Config, rawData []byte) {
	if parseExplicitFlags(rawData).AdBlock.Enable == nil {
		cfg.AdBlock.Enable = true
	}
}

// setWebUIDefaults 设置控制接口配置的默认值
func setWebUIDefaults(cfg *Config, rawData []byte) {
	if parseExplicitFlags(rawData).WebUI.Enabled == nil {
		cfg.WebUI.Enabled = true
	}
	if cfg.WebUI.ListenPort == 0 {
		cfg.WebUI.ListenPort = 8080
	}
}

// setSystemDefaults 设置系统配置的默认值
func setSystemDefaults(cfg *Config) {
	if cfg.System.LogLevel == "" {
		cfg.System.LogLevel = "info"
	}
}
