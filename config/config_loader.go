package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CreateDefaultConfig 创建默认配置文件
func CreateDefaultConfig(filePath string) error {
	return os.WriteFile(filePath, []byte(DefaultConfigContent), 0644)
}

// LoadConfig 从 YAML 文件加载配置
// 文件不存在时自动创建默认配置文件
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := CreateDefaultConfig(filePath); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		data = []byte(DefaultConfigContent)
	}

	return Parse(data)
}

// Parse 解析 YAML 配置内容并补全默认值
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaultValues(&cfg, data)
	return &cfg, nil
}
