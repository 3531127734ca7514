package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// FileInfo 文件元数据结构
type FileInfo struct {
	Key      string    // 存储键(本地为相对路径，MinIO为对象名)
	Name     string    // 文件名
	Size     int64     // 文件大小(字节)
	MimeType string    // 文件MIME类型
	ModTime  time.Time // 最后修改时间
}

// Storage 文档来源存储接口
// 文档通过键读取，可以有不同实现(本地文件系统、MinIO等)
type Storage interface {
	// Save 按键保存文件
	Save(ctx context.Context, reader io.Reader, key string) (FileInfo, error)

	// Get 获取文件内容，文件不存在时返回ErrNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Stat 获取文件元数据，文件不存在时返回ErrNotFound
	Stat(ctx context.Context, key string) (FileInfo, error)

	// List 列出带指定前缀的文件
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}

// Config 存储配置
type Config struct {
	Type      string // local 或 minio
	Path      string // 本地存储根目录
	Endpoint  string // MinIO端点
	AccessKey string
	SecretKey string
	Bucket    string // MinIO桶名称
	UseSSL    bool
}

// NewStorage 根据配置创建存储实例
func NewStorage(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(LocalConfig{Path: cfg.Path})
	case "minio":
		return NewMinioStorage(ctx, MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// getMimeType 简单根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
