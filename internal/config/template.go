// Package config 配置文件模板的生成和检查
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/adrg/xdg"
)

const (
	// AppName 用于用户级配置目录
	AppName = "sitemindmap"

	// DefaultConfigFile 默认配置文件路径
	DefaultConfigFile = "configs/config.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

// XDGConfigDir 用户级配置目录
// Linux: ~/.config/sitemindmap
// macOS: ~/Library/Application Support/sitemindmap
// Windows: %APPDATA%\sitemindmap
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

//go:embed config_template.yaml
var defaultTemplate string

// Template 带注释的默认配置
func Template() string {
	return defaultTemplate
}

// EnsureConfigExists 配置文件不存在时写入模板
// 返回值表示是否新建了文件
func EnsureConfigExists(configPath string) (bool, error) {
	if configPath == "" {
		configPath = DefaultConfigFile
	}

	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("无法读取配置文件信息 [%s]: %w", configPath, err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
	}
	if err := os.WriteFile(configPath, []byte(defaultTemplate), 0644); err != nil {
		return false, fmt.Errorf("无法生成配置文件 [%s]: %w", configPath, err)
	}
	return true, nil
}

// ValidateFileSize 验证配置文件大小是否在限制内
func ValidateFileSize(configPath string) error {
	info, err := os.Stat(configPath)
	if err != nil {
		return &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("无法读取配置文件信息: %w", err)}
	}

	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: configPath,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}
