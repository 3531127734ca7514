package document

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// Loader 文档加载器接口
// 负责将不同格式的文件加载为有序的Document序列
type Loader interface {
	// Load 从文件路径加载文档
	Load(filePath string) ([]Document, error)

	// LoadReader 从Reader加载文档
	// name写入metadata的source字段
	LoadReader(r io.Reader, name string) ([]Document, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// 常用metadata键
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
)

// LoaderFactory 根据文件类型创建对应的加载器
// PDF加载器可以通过opts选择解析引擎
func LoaderFactory(filePath string, opts ...PDFOption) (Loader, error) {
	switch DetectContentType(filePath) {
	case PDF:
		return NewPDFLoader(opts...), nil
	case Markdown:
		return NewMarkdownLoader(), nil
	case PlainText:
		return NewPlainTextLoader(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filePath))
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filePath string) ContentType {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// Document 加载后的文档单元
// 对PDF而言一页对应一个Document
type Document struct {
	Content  string            // 文档文本内容
	Metadata map[string]string // 元数据，例如source、page
}

// Chunk 分段器输出的文本块
type Chunk struct {
	ID         string            `json:"id"`          // 块唯一标识
	Text       string            `json:"text"`        // 块文本
	Metadata   map[string]string `json:"metadata"`    // 来源文档的元数据副本
	Index      int               `json:"index"`       // 在来源文档中的序号
	StartIndex int               `json:"start_index"` // 首个原子单元在文档中的字符偏移
}

// String 以page_content/metadata的形式输出块内容
func (c Chunk) String() string {
	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("'%s': '%s'", k, c.Metadata[k]))
	}
	return fmt.Sprintf("page_content='%s' metadata={%s}", c.Text, strings.Join(pairs, ", "))
}

// copyMetadata 复制元数据，保证块与文档互不影响
func copyMetadata(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
