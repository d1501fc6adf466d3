package config

// Config 主配置结构
type Config struct {
	AdBlock AdBlockConfig `yaml:"adblock" json:"adblock"`
	Rules   RulesConfig   `yaml:"rules" json:"rules"`
	WebUI   WebUIConfig   `yaml:"webui" json:"webui"`
	System  SystemConfig  `yaml:"system" json:"system"`
}

// AdBlockConfig 广告拦截配置
type AdBlockConfig struct {
	// 启动时是否立即启用拦截（省略时默认 true）
	Enable bool `yaml:"enable" json:"enable"`
	// 额外的规则列表文件，每行一条规则
	RuleFiles []string `yaml:"rule_files,omitempty" json:"rule_files"`
}

// RulesConfig 内置规则集
// 列表为空时使用 ruleset.DefaultLists 中的默认值
type RulesConfig struct {
	DomainPatterns    []string `yaml:"domain_patterns,omitempty" json:"domain_patterns"`
	AttributeKeywords []string `yaml:"attribute_keywords,omitempty" json:"attribute_keywords"`
	DataMarkers       []string `yaml:"data_markers,omitempty" json:"data_markers"`
	FrameKeywords     []string `yaml:"frame_keywords,omitempty" json:"frame_keywords"`
	AdImageToken      string   `yaml:"ad_image_token,omitempty" json:"ad_image_token"`
	NetworkRules      []string `yaml:"network_rules,omitempty" json:"network_rules"`
}

// WebUIConfig 控制接口配置
type WebUIConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	ListenPort int  `yaml:"listen_port,omitempty" json:"listen_port"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel string `yaml:"log_level,omitempty" json:"log_level"`
}
