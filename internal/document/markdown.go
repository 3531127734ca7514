package document

import (
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownLoader Markdown文档加载器
// 先渲染为HTML，再去掉标签得到纯文本
type MarkdownLoader struct{}

// NewMarkdownLoader 创建新的Markdown加载器
func NewMarkdownLoader() Loader {
	return &MarkdownLoader{}
}

// Load 加载Markdown文件
func (l *MarkdownLoader) Load(filePath string) ([]Document, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open markdown file: %w", ErrIO, err)
	}
	defer file.Close()

	return l.LoadReader(file, filePath)
}

// LoadReader 从Reader解析Markdown内容
func (l *MarkdownLoader) LoadReader(r io.Reader, name string) ([]Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read markdown content: %w", ErrIO, err)
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse(content)

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	htmlContent := markdown.Render(doc, renderer)

	return []Document{{
		Content:  extractTextFromHTML(string(htmlContent)),
		Metadata: map[string]string{MetaSource: name},
	}}, nil
}

var (
	blockTagPattern = regexp.MustCompile(`(?i)</?(p|h[1-6]|ul|ol|pre|blockquote|table|tr|hr)[^>]*>`)
	breakTagPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
	itemTagPattern  = regexp.MustCompile(`(?i)<li[^>]*>`)
	anyTagPattern   = regexp.MustCompile(`<[^>]+>`)
	spaceRunPattern = regexp.MustCompile(`[ \t]+`)
	blankRunPattern = regexp.MustCompile(`\n{3,}`)
	lineTrimPattern = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
)

// extractTextFromHTML 从HTML中提取纯文本，保留段落边界
func extractTextFromHTML(s string) string {
	s = breakTagPattern.ReplaceAllString(s, "\n")
	s = itemTagPattern.ReplaceAllString(s, "- ")
	s = blockTagPattern.ReplaceAllString(s, "\n\n")
	s = anyTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	return normalizeWhitespace(s)
}

// normalizeWhitespace 合并行内空白，连续空行最多保留一个
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRunPattern.ReplaceAllString(text, " ")
	text = lineTrimPattern.ReplaceAllString(text, "")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
