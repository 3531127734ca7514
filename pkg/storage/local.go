package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage 本地文件存储实现
// 相对键以basePath为根，绝对路径键直接访问
type LocalStorage struct {
	basePath string // 基础存储路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径，为空时使用当前目录
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	path := cfg.Path
	if path == "" {
		path = "."
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: absPath}, nil
}

// resolve 把键转换为文件路径
func (s *LocalStorage) resolve(key string) string {
	if filepath.IsAbs(key) {
		return filepath.Clean(key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Save 保存文件到本地存储
func (s *LocalStorage) Save(_ context.Context, reader io.Reader, key string) (FileInfo, error) {
	filePath := s.resolve(key)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	return s.statPath(key, filePath)
}

// Get 获取文件内容
func (s *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.resolve(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Stat 获取文件元数据
func (s *LocalStorage) Stat(_ context.Context, key string) (FileInfo, error) {
	return s.statPath(key, s.resolve(key))
}

func (s *LocalStorage) statPath(key, filePath string) (FileInfo, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return FileInfo{}, fmt.Errorf("%s is a directory", key)
	}

	return FileInfo{
		Key:      key,
		Name:     info.Name(),
		Size:     info.Size(),
		MimeType: getMimeType(info.Name()),
		ModTime:  info.ModTime(),
	}, nil
}

// List 列出带指定前缀的文件
// 相对前缀在存储根目录下匹配，返回相对键；绝对前缀直接在文件系统中匹配，返回绝对路径键
func (s *LocalStorage) List(_ context.Context, prefix string) ([]FileInfo, error) {
	root := s.basePath
	toKey := func(path string) (string, error) {
		rel, err := filepath.Rel(s.basePath, path)
		return filepath.ToSlash(rel), err
	}

	if filepath.IsAbs(prefix) {
		prefix = filepath.FromSlash(prefix)
		root = prefix
		if info, err := os.Stat(prefix); err != nil || !info.IsDir() {
			root = filepath.Dir(prefix)
		}
		toKey = func(path string) (string, error) { return path, nil }
	}

	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var files []FileInfo
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		key, err := toKey(path)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Key:      key,
			Name:     d.Name(),
			Size:     info.Size(),
			MimeType: getMimeType(d.Name()),
			ModTime:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}
