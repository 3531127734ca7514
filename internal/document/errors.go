package document

import (
	"errors"
	"fmt"
)

var (
	// ErrIO 文件不存在或无法读取
	ErrIO = errors.New("document io error")

	// ErrFormat 文档无法被解析
	ErrFormat = errors.New("document format error")

	// ErrUnsupportedFormat 不支持的文档类型
	ErrUnsupportedFormat = errors.New("unsupported document type")

	// ErrInvalidConfig 分段器配置无效
	ErrInvalidConfig = errors.New("invalid splitter config")

	// ErrInvalidContent 文档内容不是合法的UTF-8文本
	ErrInvalidContent = errors.New("invalid document content")
)

// ConfigError 分段器配置错误，记录出错的字段
type ConfigError struct {
	Field  string // 配置字段名
	Reason string // 错误原因
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

// Unwrap 使errors.Is(err, ErrInvalidConfig)成立
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
