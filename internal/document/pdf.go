package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFEngine PDF文本提取引擎
type PDFEngine string

const (
	// EngineLedongthuc 使用ledongthuc/pdf按页提取纯文本
	EngineLedongthuc PDFEngine = "ledongthuc"
	// EnginePDFCPU 使用pdfcpu提取页面内容流，再取出其中的文本
	EnginePDFCPU PDFEngine = "pdfcpu"
)

// PDFLoader PDF文档加载器，每一页生成一个Document
type PDFLoader struct {
	engine PDFEngine
}

// PDFOption PDF加载器配置选项
type PDFOption func(*PDFLoader)

// WithEngine 设置PDF解析引擎
func WithEngine(engine PDFEngine) PDFOption {
	return func(l *PDFLoader) {
		if engine != "" {
			l.engine = engine
		}
	}
}

// NewPDFLoader 创建一个新的PDF加载器
func NewPDFLoader(opts ...PDFOption) Loader {
	l := &PDFLoader{engine: EngineLedongthuc}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 加载PDF文件
func (l *PDFLoader) Load(filePath string) ([]Document, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF file: %w", ErrIO, err)
	}
	defer file.Close()

	return l.LoadReader(file, filePath)
}

// LoadReader 从Reader加载PDF内容
func (l *PDFLoader) LoadReader(r io.Reader, name string) ([]Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read PDF content: %w", ErrIO, err)
	}

	var pages []string
	switch l.engine {
	case EngineLedongthuc:
		pages, err = extractPagesLedongthuc(data)
	case EnginePDFCPU:
		pages, err = extractPagesPDFCPU(data)
	default:
		return nil, fmt.Errorf("unknown PDF engine: %s", l.engine)
	}
	if err != nil {
		return nil, err
	}

	total := strconv.Itoa(len(pages))
	docs := make([]Document, 0, len(pages))
	for i, text := range pages {
		docs = append(docs, Document{
			Content: text,
			Metadata: map[string]string{
				MetaSource:     name,
				MetaPage:       strconv.Itoa(i),
				MetaTotalPages: total,
			},
		})
	}
	return docs, nil
}

// extractPagesLedongthuc 按页提取纯文本
func extractPagesLedongthuc(data []byte) (pages []string, err error) {
	// ledongthuc/pdf在遇到损坏的对象时会panic
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("%w: malformed PDF: %v", ErrFormat, rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %w", ErrFormat, err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to extract text from page %d: %w", ErrFormat, i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

var contentPagePattern = regexp.MustCompile(`_(\d+)\.txt$`)

// extractPagesPDFCPU 使用pdfcpu把每页内容流导出到临时目录，再逐页读取
func extractPagesPDFCPU(data []byte) ([]string, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create temp dir: %w", ErrIO, err)
	}
	defer os.RemoveAll(tmpDir)

	inFile := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(inFile, data, 0644); err != nil {
		return nil, fmt.Errorf("%w: failed to write temp PDF: %w", ErrIO, err)
	}

	ctx, err := api.ReadContextFile(inFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read PDF: %w", ErrFormat, err)
	}

	outDir := filepath.Join(tmpDir, "content")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create output dir: %w", ErrIO, err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(inFile, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("%w: failed to extract content from PDF: %w", ErrFormat, err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read extracted content dir: %w", ErrIO, err)
	}

	pages := make([]string, ctx.PageCount)
	for _, f := range files {
		m := contentPagePattern.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		pageNr, _ := strconv.Atoi(m[1])
		if pageNr < 1 || pageNr > len(pages) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read page %d content: %w", ErrIO, pageNr, err)
		}
		pages[pageNr-1] = contentStreamText(raw)
	}
	return pages, nil
}

// contentStreamText 从内容流中取出文本显示操作符(Tj, TJ, ', ")的字符串操作数
// 每个BT/ET文本块之间以换行分隔
func contentStreamText(stream []byte) string {
	var (
		out     strings.Builder
		pending strings.Builder
	)

	flushLine := func() {
		if pending.Len() == 0 {
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(pending.String())
		pending.Reset()
	}

	for i := 0; i < len(stream); i++ {
		switch c := stream[i]; {
		case c == '(':
			s, next := readLiteralString(stream, i)
			pending.WriteString(s)
			i = next
		case c == 'E' && i+1 < len(stream) && stream[i+1] == 'T' && isDelimited(stream, i, 2):
			flushLine()
			i++
		case c == 'T' && i+1 < len(stream) && stream[i+1] == '*' && isDelimited(stream, i, 2):
			flushLine()
			i++
		}
	}
	flushLine()

	return out.String()
}

// readLiteralString 读取从start位置'('开始的PDF字面量字符串，返回内容和结束')'的位置
func readLiteralString(b []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	for i := start; i < len(b); i++ {
		c := b[i]
		switch {
		case c == '\\' && i+1 < len(b):
			i++
			switch e := b[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := 0
					j := i
					for ; j < len(b) && j < i+3 && b[j] >= '0' && b[j] <= '7'; j++ {
						v = v*8 + int(b[j]-'0')
					}
					sb.WriteRune(rune(v))
					i = j - 1
				} else {
					sb.WriteByte(e)
				}
			}
		case c == '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		default:
			// 单字节编码按Latin-1解释
			sb.WriteRune(rune(c))
		}
	}
	return sb.String(), len(b)
}

// isDelimited 判断b[i:i+n]是否是一个独立的操作符
func isDelimited(b []byte, i, n int) bool {
	isSpace := func(c byte) bool {
		return c == ' ' || c == '\n' || c == '\r' || c == '\t'
	}
	if i > 0 && !isSpace(b[i-1]) {
		return false
	}
	return i+n >= len(b) || isSpace(b[i+n])
}
