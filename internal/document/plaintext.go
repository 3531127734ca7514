package document

import (
	"fmt"
	"io"
	"os"
)

// PlainTextLoader 纯文本加载器
type PlainTextLoader struct{}

// NewPlainTextLoader 创建一个新的纯文本加载器
func NewPlainTextLoader() Loader {
	return &PlainTextLoader{}
}

// Load 加载纯文本文件
func (l *PlainTextLoader) Load(filePath string) ([]Document, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open text file: %w", ErrIO, err)
	}
	defer file.Close()

	return l.LoadReader(file, filePath)
}

// LoadReader 从Reader读取纯文本，整个文件作为一个Document
func (l *PlainTextLoader) LoadReader(r io.Reader, name string) ([]Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read text file: %w", ErrIO, err)
	}

	return []Document{{
		Content:  string(content),
		Metadata: map[string]string{MetaSource: name},
	}}, nil
}
